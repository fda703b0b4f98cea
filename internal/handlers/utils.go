package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/qenty/academy/types"
)

type contextKey string

const contextActorKey contextKey = "actor"

func withActor(ctx context.Context, actor types.Actor) context.Context {
	return context.WithValue(ctx, contextActorKey, actor)
}

// actorFromContext returns the resolved actor, or Anonymous when the
// request did not pass through the actor middleware.
func actorFromContext(ctx context.Context) types.Actor {
	actor, ok := ctx.Value(contextActorKey).(types.Actor)
	if !ok {
		return types.Anonymous
	}
	return actor
}

func parseCourseID(r *http.Request) (int, error) {
	id, err := strconv.Atoi(chi.URLParam(r, "courseID"))
	if err != nil || id < 1 {
		return 0, errors.New("invalid course id")
	}
	return id, nil
}

func readFileLimited(reader io.Reader, limit int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(reader, limit+1))
	if err != nil {
		return nil, errors.New("failed to read upload")
	}
	if int64(len(data)) > limit {
		return nil, errUploadTooLarge
	}
	return data, nil
}
