package orders

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"
)

// Route keys the api forwards to the function.
const (
	RouteList   = "GET /orders"
	RoutePut    = "PUT /orders"
	RouteGet    = "GET /orders/{id}"
	RouteDelete = "DELETE /orders/{id}"
)

type Handler struct {
	store Store
	newID func() string
}

func NewHandler(store Store) *Handler {
	return &Handler{
		store: store,
		newID: uuid.NewString,
	}
}

// Handle serves one api gateway http api (payload 2.0) request.
func (h *Handler) Handle(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	slog.Info("Request received", slog.String("route", req.RouteKey), slog.String("requestId", req.RequestContext.RequestID))

	switch req.RouteKey {
	case RouteList:
		return h.list(ctx)
	case RoutePut:
		return h.put(ctx, req)
	case RouteGet:
		return h.get(ctx, req.PathParameters["id"])
	case RouteDelete:
		return h.delete(ctx, req.PathParameters["id"])
	default:
		return message(http.StatusBadRequest, "Unsupported route: "+req.RouteKey)
	}
}

func (h *Handler) list(ctx context.Context) (events.APIGatewayV2HTTPResponse, error) {
	items, err := h.store.List(ctx)
	if err != nil {
		return storeFailure(err)
	}
	return jsonResponse(http.StatusOK, items)
}

func (h *Handler) put(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	body := []byte(req.Body)
	if req.IsBase64Encoded {
		decoded, err := base64.StdEncoding.DecodeString(req.Body)
		if err != nil {
			return message(http.StatusBadRequest, "Invalid body encoding")
		}
		body = decoded
	}

	var item Item
	if err := json.Unmarshal(body, &item); err != nil || item == nil {
		return message(http.StatusBadRequest, "Body must be a JSON object")
	}
	if _, ok := item["id"]; !ok {
		item["id"] = h.newID()
	}
	if err := item.validate(); err != nil {
		return message(http.StatusBadRequest, err.Error())
	}

	if err := h.store.Put(ctx, item); err != nil {
		return storeFailure(err)
	}
	return jsonResponse(http.StatusOK, item)
}

func (h *Handler) get(ctx context.Context, id string) (events.APIGatewayV2HTTPResponse, error) {
	if id == "" {
		return message(http.StatusBadRequest, "missing id")
	}
	item, err := h.store.Get(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return message(http.StatusNotFound, "Order "+id+" not found")
	}
	if err != nil {
		return storeFailure(err)
	}
	return jsonResponse(http.StatusOK, item)
}

func (h *Handler) delete(ctx context.Context, id string) (events.APIGatewayV2HTTPResponse, error) {
	if id == "" {
		return message(http.StatusBadRequest, "missing id")
	}
	if err := h.store.Delete(ctx, id); err != nil {
		return storeFailure(err)
	}
	return jsonResponse(http.StatusOK, map[string]string{"id": id})
}

func storeFailure(err error) (events.APIGatewayV2HTTPResponse, error) {
	slog.Error("store request failed", slog.Any("error", err))
	return message(http.StatusInternalServerError, "Internal error")
}

func message(status int, msg string) (events.APIGatewayV2HTTPResponse, error) {
	return jsonResponse(status, map[string]string{"message": msg})
}

func jsonResponse(status int, v any) (events.APIGatewayV2HTTPResponse, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return events.APIGatewayV2HTTPResponse{}, err
	}
	return events.APIGatewayV2HTTPResponse{
		StatusCode: status,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       string(body),
	}, nil
}
