/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package main

import "github.com/qenty/academy/cmd"

func main() {
	cmd.Execute()
}
