//*****************************************************************************
// Copyright 2024-2025 Intel Corporation
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//*****************************************************************************

package client

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

const grpcProbeTimeout = 3 * time.Second

// GRPCClient probes an inference server over the standard gRPC health protocol.
type GRPCClient struct {
	conn *grpc.ClientConn
}

func NewGRPCClient(target string) (*GRPCClient, error) {
	conn, err := grpc.NewClient(target, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, err
	}
	return &GRPCClient{conn: conn}, nil
}

func (c *GRPCClient) Close() error {
	return c.conn.Close()
}

// ServerLive reports whether the empty service name is SERVING.
func (c *GRPCClient) ServerLive(ctx context.Context) error {
	return c.ServiceReady(ctx, "")
}

// ServiceReady reports whether the named service is SERVING.
func (c *GRPCClient) ServiceReady(ctx context.Context, service string) error {
	ctx, cancel := context.WithTimeout(ctx, grpcProbeTimeout)
	defer cancel()
	resp, err := healthpb.NewHealthClient(c.conn).Check(ctx, &healthpb.HealthCheckRequest{Service: service})
	if err != nil {
		return err
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		return fmt.Errorf("service %q is %s", service, resp.GetStatus())
	}
	return nil
}
