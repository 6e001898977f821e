package main

import (
	"github.com/DataDog/pulsar-metrics/cmd/pulsarmetrics/commands"
)

func main() {
	commands.Execute()
}
