package grpc

import (
	"errors"
	"time"

	"github.com/DRSN-tech/product-api/internal/domain"
	"github.com/DRSN-tech/product-api/pkg/e"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

func GRPCErrorResponse(err error) error {
	switch {
	case errors.Is(err, e.ErrProductNotFound):
		return status.Error(codes.NotFound, e.ErrProductNotFound.Error())
	case errors.Is(err, e.ErrInvalidProductID):
		return status.Error(codes.InvalidArgument, e.ErrInvalidProductID.Error())
	default:
		return status.Error(codes.Internal, e.ErrInternalServerError.Error())
	}
}

// toGRPCProduct переводит продукт в google.protobuf.Struct с теми же полями, что и HTTP-ответ.
func toGRPCProduct(pr *domain.Product, resolve func(string) string) (*structpb.Struct, error) {
	fields := map[string]any{
		"id":             pr.ID,
		"name":           pr.Name,
		"category":       pr.Category,
		"price":          pr.Price.StringFixed(2),
		"description":    optional(pr.Description),
		"stock_quantity": pr.StockQuantity,
		"sku":            optional(pr.SKU),
		"status":         int32(pr.Status),
		"image":          optional(pr.Image),
		"image_url":      nil,
		"created_at":     pr.CreatedAt.UTC().Format(time.RFC3339),
		"updated_at":     pr.UpdatedAt.UTC().Format(time.RFC3339),
	}

	if pr.Image != nil && *pr.Image != "" {
		fields["image_url"] = resolve(*pr.Image)
	}

	return structpb.NewStruct(fields)
}

func optional(s *string) any {
	if s == nil {
		return nil
	}

	return *s
}
