package main

import "github.com/pandodao/safe-pay/cmd/safepay-cli/cmd"

func main() {
	cmd.Execute()
}
