package api

import (
	"context"
	"errors"
	"strings"

	"marpro/internal/domain"
	"marpro/internal/models"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	availabilityServiceName = "marpro.availability.v1.AvailabilityService"

	CheckAvailabilityMethod = "/" + availabilityServiceName + "/CheckAvailability"
	ListEquipmentMethod     = "/" + availabilityServiceName + "/ListEquipment"
)

// AvailabilityServer is the partner API. Requests and responses are plain
// google.protobuf.Struct documents so partners need no generated stubs.
type AvailabilityServer interface {
	CheckAvailability(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	ListEquipment(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

var AvailabilityServiceDesc = grpc.ServiceDesc{
	ServiceName: availabilityServiceName,
	HandlerType: (*AvailabilityServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "CheckAvailability", Handler: checkAvailabilityHandler},
		{MethodName: "ListEquipment", Handler: listEquipmentHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "marpro/availability/v1/availability.proto",
}

func checkAvailabilityHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AvailabilityServer).CheckAvailability(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: CheckAvailabilityMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(AvailabilityServer).CheckAvailability(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func listEquipmentHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AvailabilityServer).ListEquipment(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ListEquipmentMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(AvailabilityServer).ListEquipment(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// AvailabilityClient calls the partner API over an existing connection.
type AvailabilityClient struct {
	cc grpc.ClientConnInterface
}

func NewAvailabilityClient(cc grpc.ClientConnInterface) *AvailabilityClient {
	return &AvailabilityClient{cc: cc}
}

func (c *AvailabilityClient) CheckAvailability(ctx context.Context, req *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, CheckAvailabilityMethod, req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *AvailabilityClient) ListEquipment(ctx context.Context, req *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, ListEquipmentMethod, req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// AvailabilityService answers partner availability probes.
type AvailabilityService struct {
	bookings domain.BookingService
	catalog  domain.CatalogService
}

func NewAvailabilityService(bookings domain.BookingService, catalog domain.CatalogService) *AvailabilityService {
	return &AvailabilityService{bookings: bookings, catalog: catalog}
}

func (s *AvailabilityService) CheckAvailability(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	st, err := models.ParseServiceType(field(req, "equipmentType"))
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, "equipmentType must be containers or excavators")
	}

	res, err := s.bookings.CheckAvailability(ctx, models.AvailabilityRequest{
		EquipmentType: st,
		EquipmentID:   field(req, "equipmentId"),
		Schedule: models.Schedule{
			Date:            field(req, "date"),
			StartTime:       field(req, "startTime"),
			EndTime:         field(req, "endTime"),
			EndDate:         field(req, "endDate"),
			ReservationType: models.ReservationType(field(req, "reservationType")),
		},
	})
	if err != nil {
		return nil, toStatus(err)
	}

	conflicts := make([]any, 0, len(res.Conflicts))
	for _, b := range res.Conflicts {
		conflicts = append(conflicts, map[string]any{
			"id":        b.ID,
			"date":      b.Date,
			"endDate":   b.LastDate(),
			"timeRange": b.TimeRange(),
		})
	}

	out, err := structpb.NewStruct(map[string]any{
		"available": res.Available,
		"conflicts": conflicts,
	})
	if err != nil {
		return nil, status.Error(codes.Internal, "encode response")
	}
	return out, nil
}

// ListEquipment returns the active catalog of one service type, or of all
// types when serviceType is empty.
func (s *AvailabilityService) ListEquipment(_ context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	types := []models.ServiceType{models.ServiceContainers, models.ServiceExcavators, models.ServiceConstructions}
	if raw := field(req, "serviceType"); raw != "" {
		st, err := models.ParseServiceType(raw)
		if err != nil {
			return nil, status.Error(codes.InvalidArgument, "unknown serviceType")
		}
		types = []models.ServiceType{st}
	}
	lang := field(req, "lang")

	items := make([]any, 0)
	for _, st := range types {
		for _, e := range s.catalog.ActiveEntries(st, lang) {
			items = append(items, map[string]any{
				"serviceType": string(st),
				"id":          e.ID,
				"name":        e.Name,
				"description": e.Description,
				"price":       e.Price,
				"priceUnit":   e.PriceUnit,
				"bookable":    st.Bookable(),
			})
		}
	}

	out, err := structpb.NewStruct(map[string]any{"items": items})
	if err != nil {
		return nil, status.Error(codes.Internal, "encode response")
	}
	return out, nil
}

func field(s *structpb.Struct, key string) string {
	return strings.TrimSpace(s.GetFields()[key].GetStringValue())
}

func toStatus(err error) error {
	var validationErr *domain.ValidationError
	switch {
	case errors.As(err, &validationErr):
		return status.Error(codes.InvalidArgument, validationErr.Error())
	case errors.Is(err, domain.ErrValidation):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		return status.Error(codes.NotFound, "not found")
	case errors.Is(err, domain.ErrStorageUnavailable):
		return status.Error(codes.Unavailable, "storage unavailable")
	default:
		return status.Error(codes.Internal, "internal error")
	}
}
