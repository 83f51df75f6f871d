package grpc

import (
	"context"

	"beatstore-media-service/internal/errdefs"
	"beatstore-media-service/internal/interfaces"
	"beatstore-media-service/internal/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const (
	DeliveryServiceName = "media.v1.DeliveryService"
	CheckStemsMethod    = "/" + DeliveryServiceName + "/CheckStems"

	requestIDMetadataKey = "x-request-id"
)

// LoggerInterceptor добавляет логгер и request id в контекст gRPC запросов
func LoggerInterceptor(log *logger.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		requestID := uuid.New().String()
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			if ids := md.Get(requestIDMetadataKey); len(ids) > 0 && ids[0] != "" {
				requestID = ids[0]
			}
		}

		// Добавляем логгер в контекст
		ctxWithLogger := logger.CtxWithRequestID(logger.CtxWWithLogger(ctx, log), requestID)

		// Логируем входящий запрос
		log.Info(ctxWithLogger, "gRPC request received", zap.String("method", info.FullMethod))

		// Выполняем обработчик с контекстом, содержащим логгер
		resp, err := handler(ctxWithLogger, req)

		// Логируем результат
		if err != nil {
			log.Error(ctxWithLogger, "gRPC request failed",
				zap.String("method", info.FullMethod),
				zap.Error(err))
		} else {
			log.Info(ctxWithLogger, "gRPC request completed",
				zap.String("method", info.FullMethod))
		}

		return resp, err
	}
}

// DeliveryServer gRPC API сервиса выдачи для внутренних клиентов
type DeliveryServer struct {
	deliveryService interfaces.DeliveryService
}

// NewDeliveryServer создает новый экземпляр gRPC сервера
func NewDeliveryServer(deliveryService interfaces.DeliveryService) *DeliveryServer {
	return &DeliveryServer{deliveryService: deliveryService}
}

// deliveryServiceServer контракт, по которому grpc.Server вызывает методы
type deliveryServiceServer interface {
	CheckStems(ctx context.Context, req *wrapperspb.Int64Value) (*structpb.Struct, error)
}

var deliveryServiceDesc = grpc.ServiceDesc{
	ServiceName: DeliveryServiceName,
	HandlerType: (*deliveryServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "CheckStems", Handler: checkStemsHandler},
	},
	Streams: []grpc.StreamDesc{},
}

// RegisterDeliveryServer регистрирует сервис на gRPC сервере
func RegisterDeliveryServer(s grpc.ServiceRegistrar, srv *DeliveryServer) {
	s.RegisterService(&deliveryServiceDesc, srv)
}

func checkStemsHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(wrapperspb.Int64Value)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(deliveryServiceServer).CheckStems(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: CheckStemsMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(deliveryServiceServer).CheckStems(ctx, req.(*wrapperspb.Int64Value))
	}
	return interceptor(ctx, in, info, handler)
}

// CheckStems сообщает, должна ли покупка включать стемы и загружены ли они.
// Используется уведомлением о завершении покупки.
func (s *DeliveryServer) CheckStems(ctx context.Context, req *wrapperspb.Int64Value) (*structpb.Struct, error) {
	lg := logger.GetLoggerFromCtxSafe(ctx)
	lg.Info(ctx, "CheckStems called", zap.Int64("purchaseID", req.GetValue()))

	// Валидация входных данных
	if req.GetValue() <= 0 {
		return nil, status.Errorf(errdefs.GRPCCode(errdefs.ErrInvalidInput), "purchase_id is required")
	}

	st, err := s.deliveryService.StemsStatus(ctx, req.GetValue())
	if err != nil {
		return nil, status.Error(errdefs.GRPCCode(err), errdefs.PublicMessage(err))
	}

	if st.RequiresStems && !st.StemsAvailable {
		lg.Warn(ctx, "Stems owed but not uploaded", zap.Int64("purchaseID", st.PurchaseID))
	}

	return structpb.NewStruct(map[string]interface{}{
		"purchase_id":     st.PurchaseID,
		"requires_stems":  st.RequiresStems,
		"stems_available": st.StemsAvailable,
	})
}
