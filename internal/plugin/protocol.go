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

package plugin

import (
	"net/rpc"

	goplugin "github.com/hashicorp/go-plugin"

	"github.com/MaxChangInnodisk/ivit-i-web-api/internal/types"
)

// PluginTypeEngine is the name an engine plugin is dispensed under.
const PluginTypeEngine = "engine"

// Handshake must match between the service and every engine plugin binary.
var Handshake = goplugin.HandshakeConfig{
	ProtocolVersion:  1,
	MagicCookieKey:   "IVIT_PLUGIN",
	MagicCookieValue: "ivit-engine-plugin-v1",
}

// PluginMap is the set of plugins the host can dispense.
var PluginMap = map[string]goplugin.Plugin{
	PluginTypeEngine: &EnginePlugin{},
}

// Backend is what an out-of-process engine implements.
type Backend interface {
	Health() error
	Load(req LoadRequest) (string, error)
	Infer(req InferRequest) (*InferResponse, error)
	Unload(handleID string) error
}

type LoadRequest struct {
	TaskID     string
	ModelPath  string
	LabelPath  string
	Tag        string
	Device     string
	Threshold  float64
	InputSize  [3]int
	Preprocess string
	Anchors    []float64
}

type InferRequest struct {
	HandleID string
	Width    int
	Height   int
	Data     []byte // rgb24
}

type InferResponse struct {
	Detections []types.Detection
}

type Empty struct{}

// EnginePlugin bridges a Backend over go-plugin's net/rpc protocol.
type EnginePlugin struct {
	Impl Backend
}

func (p *EnginePlugin) Server(*goplugin.MuxBroker) (interface{}, error) {
	return &RPCServer{Impl: p.Impl}, nil
}

func (p *EnginePlugin) Client(_ *goplugin.MuxBroker, c *rpc.Client) (interface{}, error) {
	return &RPCClient{client: c}, nil
}

// RPCClient is the host side Backend.
type RPCClient struct {
	client *rpc.Client
}

var _ Backend = (*RPCClient)(nil)

func (c *RPCClient) Health() error {
	return c.client.Call("Plugin.Health", Empty{}, &Empty{})
}

func (c *RPCClient) Load(req LoadRequest) (string, error) {
	var id string
	err := c.client.Call("Plugin.Load", req, &id)
	return id, err
}

func (c *RPCClient) Infer(req InferRequest) (*InferResponse, error) {
	resp := &InferResponse{}
	if err := c.client.Call("Plugin.Infer", req, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *RPCClient) Unload(handleID string) error {
	return c.client.Call("Plugin.Unload", handleID, &Empty{})
}

// RPCServer runs inside the plugin binary.
type RPCServer struct {
	Impl Backend
}

func (s *RPCServer) Health(_ Empty, _ *Empty) error {
	return s.Impl.Health()
}

func (s *RPCServer) Load(req LoadRequest, resp *string) error {
	id, err := s.Impl.Load(req)
	*resp = id
	return err
}

func (s *RPCServer) Infer(req InferRequest, resp *InferResponse) error {
	r, err := s.Impl.Infer(req)
	if err != nil {
		return err
	}
	*resp = *r
	return nil
}

func (s *RPCServer) Unload(handleID string, _ *Empty) error {
	return s.Impl.Unload(handleID)
}

// Serve is called from a plugin binary's main.
func Serve(impl Backend) {
	goplugin.Serve(&goplugin.ServeConfig{
		HandshakeConfig: Handshake,
		Plugins: map[string]goplugin.Plugin{
			PluginTypeEngine: &EnginePlugin{Impl: impl},
		},
	})
}
