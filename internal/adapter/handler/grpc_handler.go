package handler

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/rl1809/pos-checkout/internal/core/domain"
	"github.com/rl1809/pos-checkout/internal/core/service"
	"github.com/rl1809/pos-checkout/internal/pkg/logging"
)

const requestIDMetadata = "x-request-id"

type GRPCHandler struct {
	orderService *service.OrderService
}

func NewGRPCHandler(orderService *service.OrderService) *GRPCHandler {
	return &GRPCHandler{orderService: orderService}
}

func (h *GRPCHandler) CreateOrder(ctx context.Context, req *CreateOrderRequest) (*CreateOrderResponse, error) {
	res, err := h.orderService.Checkout(ctx, req.toDomain())
	if err != nil {
		return nil, grpcError(ctx, err)
	}
	resp := newCreateOrderResponse(res)
	return &resp, nil
}

func (h *GRPCHandler) ListOrders(ctx context.Context, req *ListOrdersRequest) (*ListOrdersResponse, error) {
	if req.Limit < 0 {
		return nil, status.Error(codes.InvalidArgument, "limit must be non-negative")
	}
	orders, err := h.orderService.ListOrders(ctx, service.OrderFilter{CustomerEmail: req.CustomerEmail, Limit: req.Limit})
	if err != nil {
		return nil, grpcError(ctx, err)
	}

	resp := &ListOrdersResponse{Orders: make([]OrderDTO, 0, len(orders))}
	for _, o := range orders {
		resp.Orders = append(resp.Orders, newOrderDTO(o, nil))
	}
	return resp, nil
}

func (h *GRPCHandler) GetOrder(ctx context.Context, req *GetOrderRequest) (*OrderDTO, error) {
	detail, err := h.orderService.GetOrder(ctx, req.ID)
	if err != nil {
		return nil, grpcError(ctx, err)
	}
	dto := newOrderDTO(detail.Order, detail.Items)
	return &dto, nil
}

func (h *GRPCHandler) UpdatePaymentStatus(ctx context.Context, req *UpdatePaymentRequest) (*UpdatePaymentResponse, error) {
	err := h.orderService.UpdatePaymentStatus(ctx, req.ID, domain.PaymentStatus(req.PaymentStatus), domain.OrderStatus(req.Status))
	if err != nil {
		return nil, grpcError(ctx, err)
	}
	return &UpdatePaymentResponse{ID: req.ID}, nil
}

func grpcError(ctx context.Context, err error) error {
	_, code, body := classify(err)
	if code == codes.Internal || code == codes.Unavailable {
		slog.ErrorContext(ctx, "rpc failed", "error", err)
	}
	return status.Error(code, body.Message)
}

// RequestIDInterceptor propagates x-request-id metadata into the context,
// generating one when the caller sent none.
func RequestIDInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	id := ""
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if v := md.Get(requestIDMetadata); len(v) > 0 {
			id = v[0]
		}
	}
	if id == "" {
		id = uuid.NewString()
	}
	return handler(logging.WithRequestID(ctx, id), req)
}

func LoggingInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	slog.InfoContext(ctx, "rpc",
		"method", info.FullMethod,
		"code", status.Code(err).String(),
		"duration", time.Since(start),
	)
	return resp, err
}

// NewGRPCServer returns a server with the order service and its interceptors registered.
func NewGRPCServer(h *GRPCHandler, opts ...grpc.ServerOption) *grpc.Server {
	opts = append(opts, grpc.ChainUnaryInterceptor(RequestIDInterceptor, LoggingInterceptor))
	s := grpc.NewServer(opts...)
	RegisterOrderServiceServer(s, h)
	return s
}
