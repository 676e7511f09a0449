package http

import (
	"fmt"
	"net/http"
	"runtime/debug"
	"time"

	_ "github.com/DRSN-tech/product-api/docs" // Импорт сгенерированных файлов
	"github.com/DRSN-tech/product-api/internal/cfg"
	"github.com/DRSN-tech/product-api/internal/usecase"
	"github.com/DRSN-tech/product-api/pkg/e"
	"github.com/DRSN-tech/product-api/pkg/logger"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	httpSwagger "github.com/swaggo/http-swagger/v2"
)

type Router struct {
	router     *chi.Mux
	logger     logger.Logger
	httpCfg    *cfg.HTTPConfig
	storageCfg *cfg.StorageCfg
}

func NewRouter(router *chi.Mux, logger logger.Logger, httpCfg *cfg.HTTPConfig, storageCfg *cfg.StorageCfg) *Router {
	return &Router{
		router:     router,
		logger:     logger,
		httpCfg:    httpCfg,
		storageCfg: storageCfg,
	}
}

func (r *Router) Init(prUC usecase.ProductUC) {
	r.router.Use(
		middleware.RequestID,
		middleware.RealIP,
		r.recoverer,
		r.requestLogger,
		cors.Handler(cors.Options{
			AllowedOrigins: r.httpCfg.CorsAllowedOrigins,
			AllowedMethods: []string{
				http.MethodGet,
				http.MethodPost,
				http.MethodPut,
				http.MethodPatch,
				http.MethodDelete,
				http.MethodOptions,
			},
			AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Requested-With"},
			MaxAge:         300,
		}),
	)

	r.router.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("http://"+r.httpCfg.SwaggerHost+"/swagger/doc.json"), // ссылка на JSON
	))

	prHandler := NewProductHandler(prUC, r.logger, r.httpCfg.MaxRequestSize, r.storageCfg.MaxImageSize)

	r.router.Get("/", prHandler.welcome)
	r.router.Get("/ping", prHandler.ping)
	r.router.Get("/"+r.storageCfg.PublicPrefix+"/{filename}", prHandler.serveImage)
	registerProductRoutes(r.router, prHandler)

	r.router.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		WriteJSON(w, http.StatusNotFound, NewErrorResponse("Not found", "route not found"))
	})
	r.router.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		WriteJSON(w, http.StatusMethodNotAllowed, NewErrorResponse("Method not allowed", "method not allowed"))
	})
}

func registerProductRoutes(router chi.Router, prHandler *ProductHandler) {
	router.Route("/products", func(pr chi.Router) {
		pr.Get("/", prHandler.listProducts)
		pr.Post("/", prHandler.createProduct)
		pr.Get("/{id}", prHandler.getProduct)
		pr.Put("/{id}", prHandler.updateProduct)
		pr.Patch("/{id}", prHandler.updateProduct)
		pr.Delete("/{id}", prHandler.deleteProduct)
	})
}

// requestLogger пишет в лог метод, путь, статус и длительность каждого запроса.
func (r *Router) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, req.ProtoMajor)

		next.ServeHTTP(ww, req)

		r.logger.Infof("%s %s %d %dB %s request_id=%s",
			req.Method,
			req.URL.Path,
			ww.Status(),
			ww.BytesWritten(),
			time.Since(start),
			middleware.GetReqID(req.Context()),
		)
	})
}

// recoverer превращает панику обработчика в JSON-ответ 500.
func (r *Router) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil || rec == http.ErrAbortHandler {
				if rec != nil {
					panic(rec)
				}
				return
			}

			r.logger.Errorf(fmt.Errorf("panic: %v", rec), "%s %s: recovered\n%s", req.Method, req.URL.Path, debug.Stack())
			WriteJSON(w, http.StatusInternalServerError, NewErrorResponse("Internal server error", e.ErrInternalServerError.Error()))
		}()

		next.ServeHTTP(w, req)
	})
}
