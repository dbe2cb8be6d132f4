// Package profiles supplies provider profiles (hourly rate and availability
// template) to the availability engine from the profile service or a file.
package profiles

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/md-rashed-zaman/lexbook/libs/grpcx"
	"github.com/md-rashed-zaman/lexbook/services/booking-service/internal/availability"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// GetProfileMethod takes and returns google.protobuf.Struct so no generated
// stubs are needed on this side.
const GetProfileMethod = "/profiles.v1.ProfileService/GetProfile"

type GRPCSource struct {
	conn *grpc.ClientConn
}

func NewGRPCSource(addr string, opts grpcx.DialOptions, extra ...grpc.DialOption) (*GRPCSource, error) {
	conn, err := grpcx.Dial(addr, opts, extra...)
	if err != nil {
		return nil, fmt.Errorf("dial profile service: %w", err)
	}
	return &GRPCSource{conn: conn}, nil
}

func (s *GRPCSource) Close() error {
	return s.conn.Close()
}

func (s *GRPCSource) Profile(ctx context.Context, providerID string) (availability.Profile, error) {
	req, err := structpb.NewStruct(map[string]any{"provider_id": providerID})
	if err != nil {
		return availability.Profile{}, err
	}
	resp := new(structpb.Struct)
	if err := s.conn.Invoke(ctx, GetProfileMethod, req, resp); err != nil {
		if status.Code(err) == codes.NotFound {
			return availability.Profile{}, availability.ErrProviderNotFound
		}
		return availability.Profile{}, fmt.Errorf("get profile: %w", err)
	}
	return profileFromStruct(providerID, resp)
}

func profileFromStruct(providerID string, s *structpb.Struct) (availability.Profile, error) {
	fields := s.GetFields()
	p := availability.Profile{ProviderID: providerID}
	if id := fields["provider_id"].GetStringValue(); id != "" {
		p.ProviderID = id
	}

	rate := fields["hourly_rate"].GetNumberValue()
	if rate < 0 || rate != float64(int64(rate)) {
		return availability.Profile{}, fmt.Errorf("invalid hourly_rate %v for provider %s", rate, providerID)
	}
	p.HourlyRate = int64(rate)

	raw, err := rawTemplate(fields["availability"])
	if err != nil {
		return availability.Profile{}, err
	}
	p.RawTemplate = raw
	return p, nil
}

// rawTemplate hands the engine the template as stored: strings pass through
// untouched (they may be legacy encodings), objects are re-encoded as JSON.
func rawTemplate(v *structpb.Value) ([]byte, error) {
	switch kind := v.GetKind().(type) {
	case nil, *structpb.Value_NullValue:
		return nil, nil
	case *structpb.Value_StringValue:
		return []byte(strings.TrimSpace(kind.StringValue)), nil
	default:
		return json.Marshal(v.AsInterface())
	}
}
