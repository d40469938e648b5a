package datafeed

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

const sampleFeed = `{
	"general": {
		"version": 3,
		"update": "20240314180000",
		"update_timestamp": "2024-03-14T18:00:00.1234567Z",
		"connected_clients": 1200
	},
	"pilots": [{"cid": 1, "callsign": "AAL123"}],
	"controllers": [
		{
			"cid": 1234567,
			"name": "Ada Lovelace",
			"callsign": "MEM_TWR",
			"frequency": "118.300",
			"facility": 4,
			"rating": 4,
			"text_atis": ["Memphis Tower"],
			"logon_time": "2024-03-14T17:45:12.9876543Z"
		}
	]
}`

func TestDecode(t *testing.T) {
	data, err := Decode([]byte(sampleFeed))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(data.Controllers) != 1 {
		t.Fatalf("expected 1 controller, got %d", len(data.Controllers))
	}
	ctl := data.Controllers[0]
	if ctl.CID != 1234567 || ctl.Callsign != "MEM_TWR" || ctl.Rating != 4 {
		t.Fatalf("unexpected controller %+v", ctl)
	}
	want := time.Date(2024, 3, 14, 17, 45, 12, 987654300, time.UTC)
	if !ctl.LogonTime.Equal(want) {
		t.Fatalf("logon time = %s, want %s", ctl.LogonTime, want)
	}
}

func TestDecodeMalformed(t *testing.T) {
	tests := map[string]string{
		"not json":         `{"general":`,
		"missing update":   `{"general": {"version": 3}, "controllers": []}`,
		"wrong field type": `{"general": {"update_timestamp": "2024-03-14T18:00:00Z"}, "controllers": {}}`,
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := Decode([]byte(body)); !errors.Is(err, ErrMalformedSnapshot) {
				t.Fatalf("expected ErrMalformedSnapshot, got %v", err)
			}
		})
	}
}

func TestValidateNil(t *testing.T) {
	if err := Validate(nil); !errors.Is(err, ErrSnapshotUnavailable) {
		t.Fatalf("expected ErrSnapshotUnavailable, got %v", err)
	}
}

func newRedisSource(t *testing.T) (*miniredis.Miniredis, *RedisSource) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return mr, NewRedisSource(rdb, "vatsim:datafeed")
}

func TestRedisSourceLatest(t *testing.T) {
	mr, src := newRedisSource(t)
	if err := mr.Set("vatsim:datafeed", sampleFeed); err != nil {
		t.Fatal(err)
	}

	data, err := src.Latest(context.Background())
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if data.General.Update != "20240314180000" || len(data.Controllers) != 1 {
		t.Fatalf("unexpected snapshot %+v", data.General)
	}
	if err := src.Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
}

func TestRedisSourceMissingKey(t *testing.T) {
	_, src := newRedisSource(t)

	if _, err := src.Latest(context.Background()); !errors.Is(err, ErrSnapshotUnavailable) {
		t.Fatalf("expected ErrSnapshotUnavailable, got %v", err)
	}
}

func TestRedisSourceMalformed(t *testing.T) {
	mr, src := newRedisSource(t)
	if err := mr.Set("vatsim:datafeed", "<html>bad gateway</html>"); err != nil {
		t.Fatal(err)
	}

	if _, err := src.Latest(context.Background()); !errors.Is(err, ErrMalformedSnapshot) {
		t.Fatalf("expected ErrMalformedSnapshot, got %v", err)
	}
}

func TestRedisSourceDown(t *testing.T) {
	mr, src := newRedisSource(t)
	mr.Close()

	if _, err := src.Latest(context.Background()); !errors.Is(err, ErrSnapshotUnavailable) {
		t.Fatalf("expected ErrSnapshotUnavailable, got %v", err)
	}
}

func TestHTTPSourceLatest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("unexpected method %s", r.Method)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(sampleFeed))
	}))
	defer srv.Close()

	data, err := NewHTTPSource(srv.URL).Latest(context.Background())
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if len(data.Controllers) != 1 {
		t.Fatalf("expected 1 controller, got %d", len(data.Controllers))
	}
}

func TestHTTPSourceBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream timeout", http.StatusGatewayTimeout)
	}))
	defer srv.Close()

	if _, err := NewHTTPSource(srv.URL).Latest(context.Background()); !errors.Is(err, ErrSnapshotUnavailable) {
		t.Fatalf("expected ErrSnapshotUnavailable, got %v", err)
	}
}
