// README: Server timeout and lifecycle tests.
package http

import (
	"context"
	"net/http"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestWriteTimeoutOutlastsAskTimeout(t *testing.T) {
	for _, ask := range []time.Duration{60 * time.Second, 90 * time.Second, 300 * time.Second} {
		srv := NewServer("127.0.0.1:0", http.NotFoundHandler(), WriteTimeoutFor(ask), zap.NewNop())
		if srv.srv.WriteTimeout <= ask {
			t.Errorf("ask timeout %s: write timeout %s does not outlast it", ask, srv.srv.WriteTimeout)
		}
	}
}

func TestServerStartStop(t *testing.T) {
	srv := NewServer("127.0.0.1:0", http.NotFoundHandler(), WriteTimeoutFor(time.Second), zap.NewNop())
	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := srv.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}
