package profiles

import (
	"context"
	"errors"
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/md-rashed-zaman/lexbook/libs/grpcx"
	"github.com/md-rashed-zaman/lexbook/services/booking-service/internal/availability"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"
)

type profileServer struct {
	profiles map[string]map[string]any
}

func (s *profileServer) get(in *structpb.Struct) (*structpb.Struct, error) {
	id := in.GetFields()["provider_id"].GetStringValue()
	p, ok := s.profiles[id]
	if !ok {
		return nil, status.Error(codes.NotFound, "provider not found")
	}
	return structpb.NewStruct(p)
}

var profileServiceDesc = grpc.ServiceDesc{
	ServiceName: "profiles.v1.ProfileService",
	HandlerType: (*any)(nil),
	Methods: []grpc.MethodDesc{{
		MethodName: "GetProfile",
		Handler: func(srv any, ctx context.Context, dec func(any) error, _ grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			return srv.(*profileServer).get(in)
		},
	}},
}

func startProfileServer(t *testing.T, srv *profileServer) *GRPCSource {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	s := grpc.NewServer()
	s.RegisterService(&profileServiceDesc, srv)
	go func() { _ = s.Serve(lis) }()
	t.Cleanup(s.Stop)

	source, err := NewGRPCSource("passthrough:///bufnet", grpcx.DialOptions{}, grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
		return lis.DialContext(ctx)
	}))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = source.Close() })
	return source
}

func TestGRPCSource(t *testing.T) {
	source := startProfileServer(t, &profileServer{profiles: map[string]map[string]any{
		"p1": {
			"provider_id":  "p1",
			"hourly_rate":  40000,
			"availability": map[string]any{"lunes": []any{true, false}},
		},
		"legacy": {
			"provider_id":  "legacy",
			"hourly_rate":  1000,
			"availability": `"{\"martes\":[true]}"`,
		},
		"empty": {
			"provider_id": "empty",
			"hourly_rate": 1000,
		},
	}})
	ctx := context.Background()

	p, err := source.Profile(ctx, "p1")
	if err != nil {
		t.Fatalf("profile: %v", err)
	}
	if p.HourlyRate != 40000 {
		t.Fatalf("unexpected rate %d", p.HourlyRate)
	}
	tmpl, err := availability.ParseTemplate(p.RawTemplate)
	if err != nil || len(tmpl["lunes"]) != 2 || !tmpl["lunes"][0] {
		t.Fatalf("unexpected template %v (%v)", tmpl, err)
	}

	p, err = source.Profile(ctx, "legacy")
	if err != nil {
		t.Fatalf("profile: %v", err)
	}
	tmpl, err = availability.ParseTemplate(p.RawTemplate)
	if err != nil || len(tmpl["martes"]) != 1 {
		t.Fatalf("legacy template not preserved: %v (%v)", tmpl, err)
	}

	p, err = source.Profile(ctx, "empty")
	if err != nil || len(p.RawTemplate) != 0 {
		t.Fatalf("expected empty template, got %q (%v)", p.RawTemplate, err)
	}

	if _, err := source.Profile(ctx, "missing"); !errors.Is(err, availability.ErrProviderNotFound) {
		t.Fatalf("expected ErrProviderNotFound, got %v", err)
	}
}

func TestProfileFromStruct_RejectsFractionalRate(t *testing.T) {
	s, _ := structpb.NewStruct(map[string]any{"hourly_rate": 10.5})
	if _, err := profileFromStruct("p1", s); err == nil {
		t.Fatalf("expected error for fractional rate")
	}
}

func TestStaticLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profiles.json")
	body := `[{"provider_id":"p1","hourly_rate":40000,"availability":{"lunes":[true]}},{"provider_id":"p2","hourly_rate":1000,"availability":null}]`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	static, err := LoadFile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	p, err := static.Profile(context.Background(), "p1")
	if err != nil || p.HourlyRate != 40000 {
		t.Fatalf("unexpected profile %+v (%v)", p, err)
	}
	p2, _ := static.Profile(context.Background(), "p2")
	if tmpl, err := availability.ParseTemplate(p2.RawTemplate); err != nil || len(tmpl) != 0 {
		t.Fatalf("null availability should parse as empty, got %v (%v)", tmpl, err)
	}
	if _, err := static.Profile(context.Background(), "nope"); !errors.Is(err, availability.ErrProviderNotFound) {
		t.Fatalf("expected ErrProviderNotFound, got %v", err)
	}
}
