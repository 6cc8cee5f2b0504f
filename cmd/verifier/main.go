package main

import (
	"github.com/sensorledger/integrity/cmd/verifier/cmd"
)

func main() {
	cmd.Execute()
}
