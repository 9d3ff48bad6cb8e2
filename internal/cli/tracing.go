package cli

import (
	"context"
	"io"
	"os"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// NewTracerProvider exports spans as JSON to output, a file path, or stderr
// when output is empty. The returned close function releases the file.
func NewTracerProvider(ctx context.Context, output, version string) (*sdktrace.TracerProvider, func() error, error) {
	var (
		w         io.Writer = os.Stderr
		closeFile           = func() error { return nil }
	)
	if output != "" {
		f, err := os.Create(output)
		if err != nil {
			return nil, nil, err
		}
		w, closeFile = f, f.Close
	}

	exporter, err := stdouttrace.New(stdouttrace.WithWriter(w))
	if err != nil {
		closeFile()
		return nil, nil, err
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			attribute.String("service.name", "pageflow"),
			attribute.String("service.version", version),
		),
	)
	if err != nil {
		closeFile()
		return nil, nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSpanProcessor(sdktrace.NewSimpleSpanProcessor(exporter)),
		sdktrace.WithResource(res),
	)
	return tp, closeFile, nil
}

func traceOutputName(output string) string {
	if output == "" {
		return "stderr"
	}
	return output
}
