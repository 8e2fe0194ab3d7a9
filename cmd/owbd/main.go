package main

//go-build: CGO_ENABLED=0

import (
	"flag"
	"log"

	"github.com/robotalks/owb.go/pkg/env"
	"github.com/robotalks/owb.go/pkg/framework"
)

func init() {
	env.SetupFlags()
}

func main() {
	flag.Parse()

	env := env.NewConfig().MustNewEnv()
	err := framework.NewRunner().
		HandleSignals().
		Go(env.Runnables()...).
		Wait()
	if err != nil {
		log.Fatalln(err)
	}
}
