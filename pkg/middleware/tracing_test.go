package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// installTestTracer swaps in an in-memory span exporter for the duration of
// the test and restores the previous global provider afterwards.
func installTestTracer(t *testing.T) *tracetest.InMemoryExporter {
	t.Helper()

	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSyncer(exporter),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)

	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	t.Cleanup(func() {
		_ = tp.Shutdown(context.Background())
		otel.SetTracerProvider(prev)
	})

	return exporter
}

func tracedGet(t *testing.T, path string, status int, header http.Header) (*tracetest.InMemoryExporter, *httptest.ResponseRecorder) {
	t.Helper()
	exporter := installTestTracer(t)

	r := chi.NewRouter()
	r.Use(Tracing("orchestrator"))
	r.Get(path, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	})

	req := httptest.NewRequest(http.MethodGet, path, nil)
	for name, values := range header {
		for _, v := range values {
			req.Header.Add(name, v)
		}
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return exporter, rec
}

func TestTracing_SpanNamedAfterRoute(t *testing.T) {
	exporter, rec := tracedGet(t, "/api/v1/servers", http.StatusOK, nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	spans := exporter.GetSpans()
	if len(spans) == 0 {
		t.Fatal("expected at least one span")
	}
	if got, want := spans[0].Name, "GET /api/v1/servers"; got != want {
		t.Errorf("span name = %q, want %q", got, want)
	}
}

func TestTracing_RecordsStatusCode(t *testing.T) {
	exporter, _ := tracedGet(t, "/missing", http.StatusNotFound, nil)

	spans := exporter.GetSpans()
	if len(spans) == 0 {
		t.Fatal("expected at least one span")
	}

	var code int64 = -1
	for _, attr := range spans[0].Attributes {
		if string(attr.Key) == "http.status_code" {
			code = attr.Value.AsInt64()
			break
		}
	}
	if code != 404 {
		t.Errorf("http.status_code = %d, want 404", code)
	}
}

func TestTracing_ServerErrorMarksSpan(t *testing.T) {
	exporter, _ := tracedGet(t, "/boom", http.StatusInternalServerError, nil)

	spans := exporter.GetSpans()
	if len(spans) == 0 {
		t.Fatal("expected at least one span")
	}
	if spans[0].Status.Code != 1 { // codes.Error
		t.Errorf("span status = %d, want Error", spans[0].Status.Code)
	}
}

func TestTracing_ContinuesIncomingTrace(t *testing.T) {
	header := http.Header{}
	header.Set("traceparent", "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01")

	exporter, rec := tracedGet(t, "/traced", http.StatusOK, header)

	spans := exporter.GetSpans()
	if len(spans) == 0 {
		t.Fatal("expected at least one span")
	}
	if got := spans[0].SpanContext.TraceID().String(); got != "4bf92f3577b34da6a3ce929d0e0e4736" {
		t.Errorf("trace ID = %s, want the incoming traceparent's", got)
	}
	if rec.Header().Get("traceparent") == "" {
		t.Error("response missing traceparent header")
	}
}

func TestTracing_InjectsResponseTraceparent(t *testing.T) {
	_, rec := tracedGet(t, "/inject", http.StatusOK, nil)

	if rec.Header().Get("traceparent") == "" {
		t.Error("response missing traceparent header")
	}
}
