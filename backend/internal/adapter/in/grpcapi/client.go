package grpcapi

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"x-garden/backend/internal/core/domain/grid"
)

// Client - клиент gRPC сервиса построек
type Client struct {
	conn *grpc.ClientConn
	own  bool
}

// Dial подключается к серверу построек
func Dial(address string, opts ...grpc.DialOption) (*Client, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(address, opts...)
	if err != nil {
		return nil, err
	}
	return &Client{conn: conn, own: true}, nil
}

// NewClient оборачивает существующее соединение
func NewClient(conn *grpc.ClientConn) *Client {
	return &Client{conn: conn}
}

// Close закрывает соединение, если клиент его создал
func (c *Client) Close() error {
	if !c.own {
		return nil
	}
	return c.conn.Close()
}

func (c *Client) invoke(ctx context.Context, method string, req, resp interface{}) error {
	return c.conn.Invoke(ctx, "/"+ServiceName+"/"+method, req, resp, grpc.CallContentSubtype(CodecName))
}

// Resolve находит клетку для точки
func (c *Client) Resolve(ctx context.Context, point [3]float64) (grid.CellRef, error) {
	var resp CellReply
	err := c.invoke(ctx, "Resolve", &ResolveRequest{Point: point}, &resp)
	return resp.Cell, err
}

// Raycast находит клетку под лучом и подсказку для действия
func (c *Client) Raycast(ctx context.Context, origin, direction [3]float64, action string) (*CellReply, error) {
	var resp CellReply
	if err := c.invoke(ctx, "Raycast", &RaycastRequest{Origin: origin, Direction: direction, Action: action}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CellAt возвращает снимок клетки
func (c *Client) CellAt(ctx context.Context, ref grid.CellRef) (*CellViewReply, error) {
	var resp CellViewReply
	if err := c.invoke(ctx, "CellAt", &CellRequest{Cell: ref}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Candidates возвращает клетки режима строительства
func (c *Client) Candidates(ctx context.Context, action string) ([]grid.CellRef, error) {
	var resp CandidatesReply
	err := c.invoke(ctx, "Candidates", &CandidatesRequest{Action: action}, &resp)
	return resp.Cells, err
}

// Structures возвращает все постройки
func (c *Client) Structures(ctx context.Context) ([]Structure, error) {
	var resp StructuresReply
	err := c.invoke(ctx, "Structures", &Empty{}, &resp)
	return resp.Structures, err
}

// Build ставит постройку
func (c *Client) Build(ctx context.Context, ref grid.CellRef, action string) (*Structure, error) {
	var resp StructureReply
	if err := c.invoke(ctx, "Build", &BuildRequest{Cell: ref, Action: action}, &resp); err != nil {
		return nil, err
	}
	return &resp.Structure, nil
}

// Remove сносит постройку
func (c *Client) Remove(ctx context.Context, ref grid.CellRef) (*Structure, error) {
	var resp StructureReply
	if err := c.invoke(ctx, "Remove", &CellRequest{Cell: ref}, &resp); err != nil {
		return nil, err
	}
	return &resp.Structure, nil
}
