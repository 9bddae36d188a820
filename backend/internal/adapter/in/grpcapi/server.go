package grpcapi

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"x-garden/backend/internal/core/domain/geometry"
	"x-garden/backend/internal/core/domain/grid"
	"x-garden/backend/internal/core/domain/service"
	"x-garden/backend/internal/core/port/in/worldmanagement"
	"x-garden/backend/internal/game"
)

// ServiceName - полное имя gRPC сервиса
const ServiceName = "garden.Build"

// BuildServer - методы gRPC сервиса построек
type BuildServer interface {
	Resolve(ctx context.Context, req *ResolveRequest) (*CellReply, error)
	Raycast(ctx context.Context, req *RaycastRequest) (*CellReply, error)
	CellAt(ctx context.Context, req *CellRequest) (*CellViewReply, error)
	Candidates(ctx context.Context, req *CandidatesRequest) (*CandidatesReply, error)
	Structures(ctx context.Context, req *Empty) (*StructuresReply, error)
	Build(ctx context.Context, req *BuildRequest) (*StructureReply, error)
	Remove(ctx context.Context, req *CellRequest) (*StructureReply, error)
}

// Server реализует BuildServer поверх порта управления миром
type Server struct {
	world  worldmanagement.WorldManagementPort
	logger *log.Logger
}

var _ BuildServer = (*Server)(nil)

// NewServer создает обработчик сервиса
func NewServer(world worldmanagement.WorldManagementPort, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}
	return &Server{world: world, logger: logger}
}

// NewGRPCServer создает gRPC сервер с зарегистрированным сервисом построек
func NewGRPCServer(srv BuildServer, logger *log.Logger, opts ...grpc.ServerOption) *grpc.Server {
	if logger == nil {
		logger = log.Default()
	}
	opts = append(opts, grpc.ChainUnaryInterceptor(loggingInterceptor(logger)))
	s := grpc.NewServer(opts...)
	RegisterBuildServer(s, srv)
	return s
}

// RegisterBuildServer регистрирует сервис на сервере
func RegisterBuildServer(s grpc.ServiceRegistrar, srv BuildServer) {
	s.RegisterService(&buildServiceDesc, srv)
}

func (s *Server) Resolve(ctx context.Context, req *ResolveRequest) (*CellReply, error) {
	ref, err := s.world.ResolveCell(mgl64.Vec3(req.Point))
	if err != nil {
		return nil, toStatus(err)
	}
	return &CellReply{Cell: ref}, nil
}

func (s *Server) Raycast(ctx context.Context, req *RaycastRequest) (*CellReply, error) {
	action, err := grid.ParseActionKind(req.Action)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	ray, ok := geometry.NewRay(mgl64.Vec3(req.Origin), mgl64.Vec3(req.Direction))
	if !ok {
		return nil, status.Error(codes.InvalidArgument, "нулевое направление луча")
	}

	ref, hint, err := s.world.Raycast(ray, action)
	if err != nil {
		return nil, toStatus(err)
	}
	return &CellReply{Cell: ref, Hint: hint.String()}, nil
}

func (s *Server) CellAt(ctx context.Context, req *CellRequest) (*CellViewReply, error) {
	view, err := s.world.CellAt(req.Cell)
	if err != nil {
		return nil, toStatus(err)
	}
	return &CellViewReply{View: view}, nil
}

func (s *Server) Candidates(ctx context.Context, req *CandidatesRequest) (*CandidatesReply, error) {
	action, err := grid.ParseActionKind(req.Action)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	cells, err := s.world.Candidates(action)
	if err != nil {
		return nil, toStatus(err)
	}
	if cells == nil {
		cells = []grid.CellRef{}
	}
	return &CandidatesReply{Action: action.String(), Cells: cells}, nil
}

func (s *Server) Structures(ctx context.Context, req *Empty) (*StructuresReply, error) {
	all := s.world.Structures()
	reply := &StructuresReply{Structures: make([]Structure, 0, len(all))}
	for _, st := range all {
		reply.Structures = append(reply.Structures, newStructure(st))
	}
	return reply, nil
}

func (s *Server) Build(ctx context.Context, req *BuildRequest) (*StructureReply, error) {
	action, err := grid.ParseActionKind(req.Action)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	st, err := s.world.BuildAt(ctx, req.Cell, action)
	if err != nil {
		return nil, toStatus(err)
	}
	return &StructureReply{Structure: newStructure(st)}, nil
}

func (s *Server) Remove(ctx context.Context, req *CellRequest) (*StructureReply, error) {
	st, err := s.world.RemoveAt(ctx, req.Cell)
	if err != nil {
		return nil, toStatus(err)
	}
	return &StructureReply{Structure: newStructure(st)}, nil
}

// toStatus переводит ошибку домена в gRPC статус
func toStatus(err error) error {
	var code codes.Code
	switch {
	case errors.Is(err, service.ErrNoIntersection), errors.Is(err, service.ErrUnknownCell),
		errors.Is(err, service.ErrEmptyCell):
		code = codes.NotFound
	case errors.Is(err, service.ErrOccupiedCell):
		code = codes.AlreadyExists
	case errors.Is(err, service.ErrInvalidForAction):
		code = codes.FailedPrecondition
	case errors.Is(err, service.ErrUnknownAction):
		code = codes.InvalidArgument
	case errors.Is(err, game.ErrQueueFull):
		code = codes.ResourceExhausted
	case errors.Is(err, context.DeadlineExceeded):
		code = codes.DeadlineExceeded
	case errors.Is(err, context.Canceled):
		code = codes.Canceled
	default:
		code = codes.Internal
	}
	return status.Error(code, err.Error())
}

func loggingInterceptor(logger *log.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		if err != nil {
			logger.Printf("[GRPCServer] %s: %v (%v)", info.FullMethod, err, time.Since(start))
		}
		return resp, err
	}
}

func unaryHandler[Req any, Resp any](method string, call func(BuildServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(BuildServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{
				Server:     srv,
				FullMethod: "/" + ServiceName + "/" + method,
			}
			h := func(ctx context.Context, req interface{}) (interface{}, error) {
				return call(srv.(BuildServer), ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, h)
		},
	}
}

var buildServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*BuildServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryHandler("Resolve", BuildServer.Resolve),
		unaryHandler("Raycast", BuildServer.Raycast),
		unaryHandler("CellAt", BuildServer.CellAt),
		unaryHandler("Candidates", BuildServer.Candidates),
		unaryHandler("Structures", BuildServer.Structures),
		unaryHandler("Build", BuildServer.Build),
		unaryHandler("Remove", BuildServer.Remove),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "garden/build",
}
