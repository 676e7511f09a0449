package pgdb

import (
	"context"
	"errors"
	"strings"

	"github.com/DRSN-tech/product-api/internal/domain"
	"github.com/DRSN-tech/product-api/internal/repository/pgdb/converter"
	"github.com/DRSN-tech/product-api/internal/usecase"
	"github.com/DRSN-tech/product-api/pkg/e"
	"github.com/DRSN-tech/product-api/pkg/tr"
	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jimlawless/whereami"
)

const productsTable = "products"

var productColumns = []string{
	"id",
	"name",
	"category",
	"price::text",
	"description",
	"stock_quantity",
	"sku",
	"status",
	"image",
	"created_at",
	"updated_at",
}

var returningProduct = "RETURNING " + strings.Join(productColumns, ", ")

// ProductRepo реализует репозиторий продуктов поверх PostgreSQL.
// Внутри транзакции (tr.WithTx) запросы идут через неё, иначе через пул.
type ProductRepo struct {
	pool DB
	conv converter.ProductConverter
}

func NewProductRepo(pool DB, conv converter.ProductConverter) *ProductRepo {
	return &ProductRepo{
		pool: pool,
		conv: conv,
	}
}

// Create вставляет продукт и возвращает его с ID и временными метками.
func (p *ProductRepo) Create(ctx context.Context, product *domain.Product) (*domain.Product, error) {
	model := p.conv.ToModel(product)

	query, args, err := psql.Insert(productsTable).
		SetMap(map[string]any{
			"name":           model.Name,
			"category":       model.Category,
			"price":          model.Price,
			"description":    model.Description,
			"stock_quantity": model.StockQuantity,
			"sku":            model.SKU,
			"status":         model.Status,
			"image":          model.Image,
		}).
		Suffix(returningProduct).
		ToSql()
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return p.queryOne(ctx, conn(ctx, p.pool), query, args)
}

// GetByID возвращает продукт или e.ErrProductNotFound.
func (p *ProductRepo) GetByID(ctx context.Context, id int64) (*domain.Product, error) {
	query, args, err := psql.Select(productColumns...).
		From(productsTable).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return p.queryOne(ctx, conn(ctx, p.pool), query, args)
}

// GetForUpdate читает продукт с блокировкой строки. Требует транзакцию в контексте.
func (p *ProductRepo) GetForUpdate(ctx context.Context, id int64) (*domain.Product, error) {
	tx, err := tr.TxFromCtx(ctx)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	query, args, err := psql.Select(productColumns...).
		From(productsTable).
		Where(sq.Eq{"id": id}).
		Suffix("FOR UPDATE").
		ToSql()
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return p.queryOne(ctx, tx, query, args)
}

// List возвращает продукты по возрастанию ID, опционально только из одной категории.
func (p *ProductRepo) List(ctx context.Context, req *usecase.ListProductsReq) ([]*domain.Product, error) {
	builder := psql.Select(productColumns...).
		From(productsTable).
		OrderBy("id")

	if req != nil && req.Category != nil {
		builder = builder.Where(sq.Eq{"category": *req.Category})
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	rows, err := conn(ctx, p.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}
	defer rows.Close()

	result := make([]*domain.Product, 0)
	for rows.Next() {
		model, err := scanProduct(rows)
		if err != nil {
			return nil, e.Wrap(whereami.WhereAmI(), err)
		}

		product, err := p.conv.ToEntity(model)
		if err != nil {
			return nil, e.Wrap(whereami.WhereAmI(), err)
		}

		result = append(result, product)
	}

	if err := rows.Err(); err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return result, nil
}

// Update меняет только заданные в патче колонки и обновляет updated_at.
func (p *ProductRepo) Update(ctx context.Context, id int64, patch *domain.ProductPatch) (*domain.Product, error) {
	changes := make(map[string]any)
	if patch.Name != nil {
		changes["name"] = *patch.Name
	}
	if patch.Category != nil {
		changes["category"] = *patch.Category
	}
	if patch.Price != nil {
		changes["price"] = patch.Price.StringFixed(2)
	}
	if patch.Description != nil {
		changes["description"] = *patch.Description
	}
	if patch.StockQuantity != nil {
		changes["stock_quantity"] = *patch.StockQuantity
	}
	if patch.SKU != nil {
		changes["sku"] = *patch.SKU
	}
	if patch.Status != nil {
		changes["status"] = *patch.Status
	}
	if patch.Image != nil {
		changes["image"] = *patch.Image
	}

	if len(changes) == 0 {
		return p.GetByID(ctx, id)
	}

	query, args, err := psql.Update(productsTable).
		SetMap(changes).
		Set("updated_at", sq.Expr("now()")).
		Where(sq.Eq{"id": id}).
		Suffix(returningProduct).
		ToSql()
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return p.queryOne(ctx, conn(ctx, p.pool), query, args)
}

// Delete удаляет продукт; если строки нет, возвращает e.ErrProductNotFound.
func (p *ProductRepo) Delete(ctx context.Context, id int64) error {
	query, args, err := psql.Delete(productsTable).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	tag, err := conn(ctx, p.pool).Exec(ctx, query, args...)
	if err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	if tag.RowsAffected() == 0 {
		return e.Wrap(whereami.WhereAmI(), e.ErrProductNotFound)
	}

	return nil
}

func (p *ProductRepo) queryOne(ctx context.Context, db DB, query string, args []any) (*domain.Product, error) {
	model, err := scanProduct(db.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, e.Wrap(whereami.WhereAmI(), e.ErrProductNotFound)
		}
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	product, err := p.conv.ToEntity(model)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return product, nil
}

func scanProduct(row pgx.Row) (*converter.ProductModel, error) {
	var model converter.ProductModel
	err := row.Scan(
		&model.ID,
		&model.Name,
		&model.Category,
		&model.Price,
		&model.Description,
		&model.StockQuantity,
		&model.SKU,
		&model.Status,
		&model.Image,
		&model.CreatedAt,
		&model.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &model, nil
}
