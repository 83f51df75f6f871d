package dbmanager

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"beatstore-media-service/config"
	"beatstore-media-service/internal/errdefs"
	"beatstore-media-service/internal/interfaces"
	"beatstore-media-service/internal/logger"
	"beatstore-media-service/internal/models"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const (
	CatalogServiceName       = "catalog.v1.CatalogService"
	CatalogGetPurchaseMethod = "/" + CatalogServiceName + "/GetPurchase"
)

// CatalogServer сторона каталога: покупка по id в виде JSON-совместимой структуры
type CatalogServer interface {
	GetPurchase(ctx context.Context, id *wrapperspb.Int64Value) (*structpb.Struct, error)
}

// CatalogServiceDesc описание сервиса каталога для регистрации на grpc.Server
var CatalogServiceDesc = grpc.ServiceDesc{
	ServiceName: CatalogServiceName,
	HandlerType: (*CatalogServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetPurchase", Handler: getPurchaseHandler},
	},
	Streams: []grpc.StreamDesc{},
}

func getPurchaseHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(wrapperspb.Int64Value)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(CatalogServer).GetPurchase(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: CatalogGetPurchaseMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(CatalogServer).GetPurchase(ctx, req.(*wrapperspb.Int64Value))
	}
	return interceptor(ctx, in, info, handler)
}

// GRPCCatalogClient клиент удаленного каталога покупок
type GRPCCatalogClient struct {
	conn    *grpc.ClientConn
	timeout time.Duration
}

// Убеждаемся, что GRPCCatalogClient реализует интерфейс PurchaseRepository
var _ interfaces.PurchaseRepository = (*GRPCCatalogClient)(nil)

// NewGRPCCatalogClient создает новый gRPC клиент для каталога
func NewGRPCCatalogClient(cfg *config.Config) (*GRPCCatalogClient, error) {
	// Настраиваем параметры соединения
	keepaliveParams := keepalive.ClientParameters{
		Time:                30 * time.Second,
		Timeout:             5 * time.Second,
		PermitWithoutStream: true,
	}

	addr := fmt.Sprintf("%s:%d", cfg.Catalog.Host, cfg.Catalog.Port)
	conn, err := grpc.NewClient(
		addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithKeepaliveParams(keepaliveParams),
		grpc.WithStatsHandler(otelgrpc.NewClientHandler()),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to catalog at %s: %w", addr, err)
	}
	return NewGRPCCatalogClientConn(conn), nil
}

// NewGRPCCatalogClientConn оборачивает готовое соединение
func NewGRPCCatalogClientConn(conn *grpc.ClientConn) *GRPCCatalogClient {
	return &GRPCCatalogClient{conn: conn, timeout: 10 * time.Second}
}

// Close закрывает соединение с каталогом
func (c *GRPCCatalogClient) Close() error {
	return c.conn.Close()
}

func (c *GRPCCatalogClient) GetPurchase(ctx context.Context, id int64) (*models.Purchase, error) {
	lg := logger.GetLoggerFromCtxSafe(ctx)
	lg.Debug(ctx, "Getting purchase from catalog", zap.Int64("purchaseID", id))

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, CatalogGetPurchaseMethod, wrapperspb.Int64(id), out); err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, errdefs.Wrapf(errdefs.ErrPurchaseNotFound, "purchase %d", id)
		}
		lg.Error(ctx, "Failed to get purchase from catalog", zap.Int64("purchaseID", id), zap.Error(err))
		return nil, errdefs.Wrapf(errdefs.ErrDB, "catalog get purchase %d: %v", id, err)
	}

	p, err := convertStructToPurchase(out)
	if err != nil {
		return nil, errdefs.Wrapf(errdefs.ErrDB, "purchase %d: %v", id, err)
	}
	return p, nil
}

// convertStructToPurchase конвертирует ответ каталога в модель Purchase
func convertStructToPurchase(s *structpb.Struct) (*models.Purchase, error) {
	raw, err := protojson.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to encode purchase: %w", err)
	}

	var p models.Purchase
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("failed to decode purchase: %w", err)
	}
	if p.LicenseType, err = models.ParseLicenseType(string(p.LicenseType)); err != nil {
		return nil, err
	}
	return &p, nil
}

// ConvertPurchaseToStruct обратное преобразование, для серверов каталога
func ConvertPurchaseToStruct(p *models.Purchase) (*structpb.Struct, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to encode purchase: %w", err)
	}
	out := new(structpb.Struct)
	if err := protojson.Unmarshal(raw, out); err != nil {
		return nil, fmt.Errorf("failed to convert purchase: %w", err)
	}
	return out, nil
}
