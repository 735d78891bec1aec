package main

import "github.com/shouni/go-image-fetcher/cmd"

func main() {
	cmd.Execute()
}
