package codec

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"
)

// #region methods
const (
	serviceName    = "storyforge.v1.NarrativeService"
	methodGenerate = "/" + serviceName + "/Generate"
	methodCritique = "/" + serviceName + "/Critique"
)

// #endregion methods

// #region types
// CritiqueRequest carries one draft to the critic service.
type CritiqueRequest struct {
	Content string
	Choices []string
	Context string
	Mode    string
}

// invoker is the subset of *grpc.ClientConn the client needs.
type invoker interface {
	Invoke(ctx context.Context, method string, args, reply any, opts ...grpc.CallOption) error
}

// #endregion types

// #region client-struct
// CodecClient wraps the gRPC connection to the narrative inference service.
// Payloads travel as google.protobuf.Struct so output schemas stay dynamic.
type CodecClient struct {
	conn    *grpc.ClientConn
	cc      invoker
	timeout time.Duration
}

// #endregion client-struct

// #region constructor
// NewCodecClient connects to the narrative inference gRPC server.
func NewCodecClient(addr string) (*CodecClient, error) {
	conn, err := grpc.NewClient(addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithStatsHandler(otelgrpc.NewClientHandler()),
	)
	if err != nil {
		return nil, fmt.Errorf("grpc dial %s: %w", addr, err)
	}
	return &CodecClient{conn: conn, cc: conn}, nil
}

// NewCodecClientWithInvoker creates a CodecClient over an injected invoker.
// Used for testing without a real gRPC connection.
func NewCodecClientWithInvoker(inv invoker) *CodecClient {
	return &CodecClient{cc: inv}
}

// SetTimeout bounds every call. Zero leaves the caller's deadline alone.
func (c *CodecClient) SetTimeout(d time.Duration) {
	c.timeout = d
}

func (c *CodecClient) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.timeout)
}

// #endregion constructor

// #region close
// Close shuts down the gRPC connection.
func (c *CodecClient) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

// #endregion close

// #region generate
// Generate sends the prompts and the expected JSON output schema to the
// inference service and returns the structured result.
func (c *CodecClient) Generate(ctx context.Context, systemPrompt, userPrompt string, schema map[string]any) (map[string]any, error) {
	schemaVal, err := structpb.NewStruct(schema)
	if err != nil {
		return nil, fmt.Errorf("encode schema: %w", err)
	}
	req := &structpb.Struct{Fields: map[string]*structpb.Value{
		"system_prompt": structpb.NewStringValue(systemPrompt),
		"user_prompt":   structpb.NewStringValue(userPrompt),
		"output_schema": structpb.NewStructValue(schemaVal),
	}}

	ctx, cancel := c.callContext(ctx)
	defer cancel()
	resp := &structpb.Struct{}
	if err := c.cc.Invoke(ctx, methodGenerate, req, resp); err != nil {
		return nil, fmt.Errorf("generate rpc: %w", err)
	}
	return resultOf(resp), nil
}

// #endregion generate

// #region critique
// Critique asks the critic service to review a draft. The raw verdict map
// is returned for the caller to validate.
func (c *CodecClient) Critique(ctx context.Context, in CritiqueRequest) (map[string]any, error) {
	choices := make([]any, len(in.Choices))
	for i, ch := range in.Choices {
		choices[i] = ch
	}
	req, err := structpb.NewStruct(map[string]any{
		"content": in.Content,
		"choices": choices,
		"context": in.Context,
		"mode":    in.Mode,
	})
	if err != nil {
		return nil, fmt.Errorf("encode critique request: %w", err)
	}

	ctx, cancel := c.callContext(ctx)
	defer cancel()
	resp := &structpb.Struct{}
	if err := c.cc.Invoke(ctx, methodCritique, req, resp); err != nil {
		return nil, fmt.Errorf("critique rpc: %w", err)
	}
	return resultOf(resp), nil
}

// #endregion critique

// #region helpers
// resultOf unwraps an optional top-level "result" envelope.
func resultOf(resp *structpb.Struct) map[string]any {
	m := resp.AsMap()
	if inner, ok := m["result"].(map[string]any); ok && len(m) == 1 {
		return inner
	}
	return m
}

// #endregion helpers
