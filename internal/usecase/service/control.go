package service

import (
	"encoding/json"
	"errors"
	mapset "github.com/deckarep/golang-set/v2"
	"sync"
	"time"
	"websocket-relay/internal/entity"
	"websocket-relay/internal/metrics"
	"websocket-relay/internal/usecase"
)

type ControlService struct {
	mu      sync.RWMutex
	peers   map[usecase.Client]*entity.ControlPeer
	devices mapset.Set[usecase.Client]
	metrics *metrics.Metrics
}

func NewControlService(m *metrics.Metrics) usecase.ControlUsecase {
	return &ControlService{
		peers:   make(map[usecase.Client]*entity.ControlPeer),
		devices: mapset.NewSet[usecase.Client](),
		metrics: m,
	}
}

func (c *ControlService) Connect(peer usecase.Client, remoteAddr string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.peers[peer] = &entity.ControlPeer{
		ID:          peer.ID(),
		RemoteAddr:  remoteAddr,
		Role:        entity.RoleUnset,
		ConnectedAt: time.Now(),
	}
	c.metrics.ControlPeers.Set(float64(len(c.peers)))
	return len(c.peers)
}

func (c *ControlService) HandleMessage(peer usecase.Client, raw []byte) (*entity.ControlMessage, error) {
	message, err := entity.ParseControlMessage(raw)
	if err != nil {
		c.metrics.MalformedMessages.Inc()
		return nil, errors.Join(usecase.ErrBadRequest, err)
	}
	switch {
	case message.Client == entity.RoleDevice:
		// повторная регистрация ничего не меняет
		c.devices.Add(peer)
		c.setRole(peer, entity.RoleDevice)
		c.metrics.Devices.Set(float64(c.devices.Cardinality()))
	case message.Client == entity.RoleBrowser && message.HasCommand():
		c.setRole(peer, entity.RoleBrowser)
		if err := c.relay(message.Command); err != nil {
			return message, errors.Join(usecase.ErrInternal, err)
		}
	}
	return message, nil
}

// relay отправляет команду всем устройствам, открытым в момент рассылки.
// Устройства, подключившиеся позже, эту команду не получат.
func (c *ControlService) relay(command json.RawMessage) error {
	payload, err := entity.EncodeCommand(command)
	if err != nil {
		return err
	}
	for _, device := range c.devices.ToSlice() {
		if !device.IsOpen() {
			continue
		}
		_ = device.Send(payload)
	}
	c.metrics.CommandsRelayed.Inc()
	return nil
}

// setRole меняет роль только в сторону device: устройство остаётся устройством,
// даже если потом отправит команду как браузер
func (c *ControlService) setRole(peer usecase.Client, role entity.Role) {
	c.mu.Lock()
	defer c.mu.Unlock()
	state, ok := c.peers[peer]
	if !ok || state.Role == entity.RoleDevice {
		return
	}
	state.Role = role
}

func (c *ControlService) Disconnect(peer usecase.Client) int {
	c.devices.Remove(peer)
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.peers, peer)
	c.metrics.Devices.Set(float64(c.devices.Cardinality()))
	c.metrics.ControlPeers.Set(float64(len(c.peers)))
	return len(c.peers)
}

func (c *ControlService) Role(peer usecase.Client) entity.Role {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if state, ok := c.peers[peer]; ok {
		return state.Role
	}
	return entity.RoleUnset
}

func (c *ControlService) DeviceCount() int {
	return c.devices.Cardinality()
}

func (c *ControlService) PeerCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.peers)
}
