package grpc

import (
	"context"

	"github.com/DRSN-tech/product-api/internal/usecase"
	"github.com/DRSN-tech/product-api/pkg/e"
	"github.com/DRSN-tech/product-api/pkg/logger"
	"github.com/jimlawless/whereami"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const (
	ProductServiceName     = "catalog.v1.ProductService"
	getProductFullMethod   = "/" + ProductServiceName + "/GetProduct"
	listProductsFullMethod = "/" + ProductServiceName + "/ListProducts"
)

// ProductServiceServer — read-only API каталога. Сообщения — well-known types,
// поэтому сервис описан без сгенерированного кода.
type ProductServiceServer interface {
	GetProduct(ctx context.Context, req *wrapperspb.Int64Value) (*structpb.Struct, error)
	ListProducts(ctx context.Context, req *emptypb.Empty) (*structpb.ListValue, error)
}

var ProductServiceDesc = grpc.ServiceDesc{
	ServiceName: ProductServiceName,
	HandlerType: (*ProductServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetProduct", Handler: getProductHandler},
		{MethodName: "ListProducts", Handler: listProductsHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "catalog/v1/product_service.proto",
}

type ProductService struct {
	prUC   usecase.ProductUC
	logger logger.Logger
}

func NewProductService(prUC usecase.ProductUC, logger logger.Logger) *ProductService {
	return &ProductService{prUC: prUC, logger: logger}
}

func (g *ProductService) GetProduct(ctx context.Context, req *wrapperspb.Int64Value) (*structpb.Struct, error) {
	const op = "grpc.GetProduct"

	if req.GetValue() <= 0 {
		return nil, GRPCErrorResponse(e.ErrInvalidProductID)
	}

	product, err := g.prUC.GetProduct(ctx, req.GetValue())
	if err != nil {
		g.logger.Warnf("%s: %v", op, err)
		return nil, GRPCErrorResponse(e.Wrap(op, err))
	}

	res, err := toGRPCProduct(product, g.prUC.ResolveImageURL)
	if err != nil {
		g.logger.Errorf(err, "%s", op)
		return nil, GRPCErrorResponse(e.Wrap(whereami.WhereAmI(), err))
	}

	return res, nil
}

func (g *ProductService) ListProducts(ctx context.Context, _ *emptypb.Empty) (*structpb.ListValue, error) {
	const op = "grpc.ListProducts"

	products, err := g.prUC.ListProducts(ctx, usecase.NewListProductsReq(nil))
	if err != nil {
		g.logger.Errorf(e.Wrap(op, err), "%s", op)
		return nil, GRPCErrorResponse(e.Wrap(op, err))
	}

	values := make([]*structpb.Value, 0, len(products))
	for _, product := range products {
		item, err := toGRPCProduct(product, g.prUC.ResolveImageURL)
		if err != nil {
			g.logger.Errorf(err, "%s", op)
			return nil, GRPCErrorResponse(e.Wrap(whereami.WhereAmI(), err))
		}
		values = append(values, structpb.NewStructValue(item))
	}

	return &structpb.ListValue{Values: values}, nil
}

func getProductHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.Int64Value)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ProductServiceServer).GetProduct(ctx, in)
	}

	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: getProductFullMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ProductServiceServer).GetProduct(ctx, req.(*wrapperspb.Int64Value))
	}

	return interceptor(ctx, in, info, handler)
}

func listProductsHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ProductServiceServer).ListProducts(ctx, in)
	}

	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: listProductsFullMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ProductServiceServer).ListProducts(ctx, req.(*emptypb.Empty))
	}

	return interceptor(ctx, in, info, handler)
}

// ProductServiceClient — клиент к ProductService поверх grpc.ClientConnInterface.
type ProductServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewProductServiceClient(cc grpc.ClientConnInterface) *ProductServiceClient {
	return &ProductServiceClient{cc: cc}
}

func (c *ProductServiceClient) GetProduct(ctx context.Context, id int64, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, getProductFullMethod, wrapperspb.Int64(id), out, opts...); err != nil {
		return nil, err
	}

	return out, nil
}

func (c *ProductServiceClient) ListProducts(ctx context.Context, opts ...grpc.CallOption) (*structpb.ListValue, error) {
	out := new(structpb.ListValue)
	if err := c.cc.Invoke(ctx, listProductsFullMethod, &emptypb.Empty{}, out, opts...); err != nil {
		return nil, err
	}

	return out, nil
}
