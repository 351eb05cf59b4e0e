package main

import "linechat/internal/server/cli"

func main() {
	cli.Execute()
}
