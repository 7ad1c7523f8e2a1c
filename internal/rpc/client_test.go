package rpc_test

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/nyashahama/workplace-wellbeing-backend/internal/rpc"
)

// client invokes assessment methods with Struct messages.
type client struct {
	cc grpc.ClientConnInterface
}

func newClient(cc grpc.ClientConnInterface) *client {
	return &client{cc: cc}
}

// withToken returns a context that sends token as the session token.
func withToken(ctx context.Context, token string) context.Context {
	return metadata.AppendToOutgoingContext(ctx, rpc.TokenMetadataKey, token)
}

// call invokes method with fields as the request.
func (c *client) call(ctx context.Context, method string, fields map[string]any) (*structpb.Struct, error) {
	in, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+rpc.ServiceName+"/"+method, in, out); err != nil {
		return nil, err
	}
	return out, nil
}
