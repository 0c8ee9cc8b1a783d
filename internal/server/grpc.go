package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoregistry"
	"google.golang.org/protobuf/types/descriptorpb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/joseph-ayodele/bill-audit/internal/common"
)

// AuditServiceName is the fully qualified gRPC service name.
const AuditServiceName = "billaudit.v1.AuditService"

// auditProtoFile is the descriptor path reflection serves the service under.
const auditProtoFile = "billaudit/v1/audit.proto"

// AuditServer is the read side of the audit API over gRPC. Messages are
// protobuf well-known types so no generated code is needed.
type AuditServer interface {
	GetAudit(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error)
	ListAudits(context.Context, *wrapperspb.Int32Value) (*structpb.ListValue, error)
}

var AuditServiceDesc = grpc.ServiceDesc{
	ServiceName: AuditServiceName,
	HandlerType: (*AuditServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetAudit", Handler: getAuditHandler},
		{MethodName: "ListAudits", Handler: listAuditsHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: auditProtoFile,
}

var (
	auditFileOnce sync.Once
	auditFileErr  error
)

// registerAuditFile adds the service descriptor to the global registry so
// reflection clients can resolve it.
func registerAuditFile() error {
	auditFileOnce.Do(func() {
		if _, err := protoregistry.GlobalFiles.FindFileByPath(auditProtoFile); err == nil {
			return
		}
		fdp := &descriptorpb.FileDescriptorProto{
			Name:       proto.String(auditProtoFile),
			Package:    proto.String("billaudit.v1"),
			Syntax:     proto.String("proto3"),
			Dependency: []string{"google/protobuf/wrappers.proto", "google/protobuf/struct.proto"},
			Service: []*descriptorpb.ServiceDescriptorProto{{
				Name: proto.String("AuditService"),
				Method: []*descriptorpb.MethodDescriptorProto{
					{
						Name:       proto.String("GetAudit"),
						InputType:  proto.String(".google.protobuf.StringValue"),
						OutputType: proto.String(".google.protobuf.Struct"),
					},
					{
						Name:       proto.String("ListAudits"),
						InputType:  proto.String(".google.protobuf.Int32Value"),
						OutputType: proto.String(".google.protobuf.ListValue"),
					},
				},
			}},
		}
		fd, err := protodesc.NewFile(fdp, protoregistry.GlobalFiles)
		if err != nil {
			auditFileErr = err
			return
		}
		auditFileErr = protoregistry.GlobalFiles.RegisterFile(fd)
	})
	return auditFileErr
}

func getAuditHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AuditServer).GetAudit(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + AuditServiceName + "/GetAudit"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(AuditServer).GetAudit(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

func listAuditsHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(wrapperspb.Int32Value)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AuditServer).ListAudits(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + AuditServiceName + "/ListAudits"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(AuditServer).ListAudits(ctx, req.(*wrapperspb.Int32Value))
	}
	return interceptor(ctx, in, info, handler)
}

// AuditService implements AuditServer on top of the audit API.
type AuditService struct {
	api    AuditAPI
	logger *slog.Logger
}

func NewAuditService(api AuditAPI, logger *slog.Logger) *AuditService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditService{api: api, logger: logger}
}

// GetAudit polls a job. Like the HTTP poll it drains new log lines.
func (s *AuditService) GetAudit(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	id, err := common.ParseID("audit_id", req.GetValue())
	if err != nil {
		return nil, common.ToGRPCError(err)
	}
	st, err := s.api.Poll(ctx, id)
	if err != nil {
		return nil, common.ToGRPCError(err)
	}
	m, err := toMap(st)
	if err != nil {
		s.logger.Error("grpc.encode.failed", "job_id", id, "error", err)
		return nil, common.InternalError("encode audit failed")
	}
	return structpb.NewStruct(m)
}

func (s *AuditService) ListAudits(ctx context.Context, req *wrapperspb.Int32Value) (*structpb.ListValue, error) {
	runs, err := s.api.List(ctx, int(req.GetValue()))
	if err != nil {
		s.logger.Warn("list audits failed", "error", err)
		return nil, common.ToGRPCError(err)
	}
	out := make([]interface{}, 0, len(runs))
	for _, r := range runs {
		m, err := toMap(r)
		if err != nil {
			return nil, common.InternalError("encode audit failed")
		}
		out = append(out, m)
	}
	return structpb.NewList(out)
}

// toMap round-trips v through JSON into structpb-compatible values.
func toMap(v any) (map[string]interface{}, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]interface{}
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// NewGRPCServer registers the audit, health and reflection services.
func NewGRPCServer(api AuditAPI, logger *slog.Logger) *grpc.Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := grpc.NewServer(grpc.UnaryInterceptor(loggingInterceptor(logger)))
	s.RegisterService(&AuditServiceDesc, NewAuditService(api, logger))

	hs := health.NewServer()
	hs.SetServingStatus(AuditServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(s, hs)
	if err := registerAuditFile(); err != nil {
		logger.Warn("grpc.reflection.descriptor_failed", "service", AuditServiceName, "error", err)
	}
	reflection.Register(s)
	return s
}

func loggingInterceptor(logger *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		if err != nil {
			logger.Warn("grpc.call", "method", info.FullMethod, "error", err, "latency_ms", time.Since(start).Milliseconds())
			return resp, err
		}
		logger.Debug("grpc.call", "method", info.FullMethod, "latency_ms", time.Since(start).Milliseconds())
		return resp, nil
	}
}
