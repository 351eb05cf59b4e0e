package main

import "linechat/internal/client/cli"

func main() {
	cli.Execute()
}
