package gateway

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"
)

// HandleLambda serves the same routes behind API Gateway. It never returns an
// error, so Lambda never reports the invocation as failed.
func (s *Service) HandleLambda(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	path := strings.TrimRight(req.Path, "/")

	switch {
	case req.HTTPMethod == http.MethodPost && strings.HasSuffix(path, "/webhook"):
		body := []byte(req.Body)
		if req.IsBase64Encoded {
			decoded, err := base64.StdEncoding.DecodeString(req.Body)
			if err != nil {
				s.log.Debug("Failed to decode base64 webhook body", "error", err)
				decoded = nil
			}
			body = decoded
		}
		return lambdaJSON(ackResponse{OK: s.process(ctx, body)}), nil
	case req.HTTPMethod == http.MethodGet && strings.HasSuffix(path, "/healthz"):
		return lambdaJSON(s.currentStatus()), nil
	case req.HTTPMethod == http.MethodGet:
		return events.APIGatewayProxyResponse{
			StatusCode: http.StatusOK,
			Headers:    map[string]string{"Content-Type": "text/plain; charset=utf-8"},
			Body:       LivenessText,
		}, nil
	default:
		return events.APIGatewayProxyResponse{
			StatusCode: http.StatusNotFound,
			Headers:    map[string]string{"Content-Type": "application/json"},
			Body:       `{"ok":false}`,
		}, nil
	}
}

func lambdaJSON(payload any) events.APIGatewayProxyResponse {
	body, err := json.Marshal(payload)
	if err != nil {
		body = []byte(`{"ok":false}`)
	}

	return events.APIGatewayProxyResponse{
		StatusCode: http.StatusOK,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       string(body),
	}
}
