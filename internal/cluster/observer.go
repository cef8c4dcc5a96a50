// Package cluster maintains the live view of nodes and dns-enabled
// services: two indexed snapshots behind a read lock, fed by Kubernetes
// watches, with a single-slot coalesced signal driving the
// reconciliation engine.
package cluster

import (
	"context"
	"fmt"
	"sync"
	"time"

	corev1 "k8s.io/api/core/v1"
	"k8s.io/client-go/informers"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/tools/cache"

	"github.com/magicorntech/epictetus/internal/domain"
)

const resyncPeriod = 10 * time.Minute

// RawService is the as-observed, not-yet-merged projection of one
// service's DNS annotations. The registry resolves conflicts across
// these into the final HostnameSpec set.
type RawService struct {
	Owner string // namespace/name
	Spec  domain.HostnameSpec
}

// Observer watches cluster state and exposes it as a consistent
// snapshot plus a coalesced change signal.
type Observer interface {
	Run(ctx context.Context) error
	// Synced reports whether the initial list-then-watch sync has
	// completed for both informers (feeds the readiness probe).
	Synced() bool
	// Snapshot returns atomic copies of the current node and service
	// views. Callers never see a partially updated map.
	Snapshot() (nodes map[string]domain.Node, services map[string]RawService)
	// Signal is the coalesced wake-up channel: any change sets a single
	// pending slot; at most one value is ever buffered.
	Signal() <-chan struct{}
}

type observer struct {
	client kubernetes.Interface

	mu       sync.RWMutex
	nodes    map[string]domain.Node
	services map[string]RawService

	nodesSynced    func() bool
	servicesSynced func() bool

	signal chan struct{}
}

func New(client kubernetes.Interface) Observer {
	return &observer{
		client:   client,
		nodes:    make(map[string]domain.Node),
		services: make(map[string]RawService),
		signal:   make(chan struct{}, 1),
	}
}

func (o *observer) Signal() <-chan struct{} {
	return o.signal
}

func (o *observer) wake() {
	select {
	case o.signal <- struct{}{}:
	default:
	}
}

func (o *observer) Synced() bool {
	return o.nodesSynced != nil && o.servicesSynced != nil && o.nodesSynced() && o.servicesSynced()
}

func (o *observer) Snapshot() (map[string]domain.Node, map[string]RawService) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	nodes := make(map[string]domain.Node, len(o.nodes))
	for k, v := range o.nodes {
		nodes[k] = v
	}
	services := make(map[string]RawService, len(o.services))
	for k, v := range o.services {
		services[k] = v
	}
	return nodes, services
}

// Run starts the node and service informers and blocks until ctx is
// cancelled. Each informer runs its own watch; a watch disconnect is
// transparently relisted by client-go's reflector, which retries with
// backoff on its own.
func (o *observer) Run(ctx context.Context) error {
	factory := informers.NewSharedInformerFactory(o.client, resyncPeriod)

	nodeInformer := factory.Core().V1().Nodes().Informer()
	serviceInformer := factory.Core().V1().Services().Informer()
	o.nodesSynced = nodeInformer.HasSynced
	o.servicesSynced = serviceInformer.HasSynced

	if _, err := nodeInformer.AddEventHandler(cache.ResourceEventHandlerFuncs{
		AddFunc:    o.onNodeUpsert,
		UpdateFunc: func(_, newObj interface{}) { o.onNodeUpsert(newObj) },
		DeleteFunc: o.onNodeDelete,
	}); err != nil {
		return fmt.Errorf("add node event handler: %w", err)
	}

	if _, err := serviceInformer.AddEventHandler(cache.ResourceEventHandlerFuncs{
		AddFunc:    o.onServiceUpsert,
		UpdateFunc: func(_, newObj interface{}) { o.onServiceUpsert(newObj) },
		DeleteFunc: o.onServiceDelete,
	}); err != nil {
		return fmt.Errorf("add service event handler: %w", err)
	}

	factory.Start(ctx.Done())
	factory.WaitForCacheSync(ctx.Done())

	<-ctx.Done()
	return nil
}

func (o *observer) onNodeUpsert(obj interface{}) {
	node, ok := obj.(*corev1.Node)
	if !ok {
		return
	}
	n := toDomainNode(node)

	o.mu.Lock()
	o.nodes[n.Name] = n
	o.mu.Unlock()
	o.wake()
}

func (o *observer) onNodeDelete(obj interface{}) {
	node, ok := asNode(obj)
	if !ok {
		return
	}
	o.mu.Lock()
	delete(o.nodes, node.Name)
	o.mu.Unlock()
	o.wake()
}

func (o *observer) onServiceUpsert(obj interface{}) {
	svc, ok := obj.(*corev1.Service)
	if !ok {
		return
	}
	key := svc.Namespace + "/" + svc.Name

	spec, ok := parseServiceSpec(svc)
	o.mu.Lock()
	if ok {
		o.services[key] = RawService{Owner: key, Spec: spec}
	} else {
		delete(o.services, key)
	}
	o.mu.Unlock()
	o.wake()
}

func (o *observer) onServiceDelete(obj interface{}) {
	svc, ok := asService(obj)
	if !ok {
		return
	}
	key := svc.Namespace + "/" + svc.Name
	o.mu.Lock()
	delete(o.services, key)
	o.mu.Unlock()
	o.wake()
}

func asNode(obj interface{}) (*corev1.Node, bool) {
	if n, ok := obj.(*corev1.Node); ok {
		return n, true
	}
	if tomb, ok := obj.(cache.DeletedFinalStateUnknown); ok {
		n, ok := tomb.Obj.(*corev1.Node)
		return n, ok
	}
	return nil, false
}

func asService(obj interface{}) (*corev1.Service, bool) {
	if s, ok := obj.(*corev1.Service); ok {
		return s, true
	}
	if tomb, ok := obj.(cache.DeletedFinalStateUnknown); ok {
		s, ok := tomb.Obj.(*corev1.Service)
		return s, ok
	}
	return nil, false
}

func toDomainNode(n *corev1.Node) domain.Node {
	taints := make(map[string]struct{}, len(n.Spec.Taints))
	for _, t := range n.Spec.Taints {
		taints[t.Key] = struct{}{}
	}

	var externalIP string
	for _, addr := range n.Status.Addresses {
		if addr.Type == corev1.NodeExternalIP {
			externalIP = addr.Address
			break
		}
	}

	return domain.Node{
		Name:         n.Name,
		ExternalIPv4: externalIP,
		Taints:       taints,
	}
}
