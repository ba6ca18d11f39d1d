package proxy

import (
	"github.com/aws/aws-lambda-go/lambda"
)

var engine *Engine

// Serve creates an Engine for app and hands it to the Lambda runtime.
// It blocks for the lifetime of the process.
func Serve(app Application, opts ...Option) {
	engine = NewEngine(app, opts...)
	lambda.Start(engine.Invoke)
}

// Close stops the engine started by Serve.
func Close() {
	if engine != nil {
		engine.Stop()
	}
}
