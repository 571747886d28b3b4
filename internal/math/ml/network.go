package ml

import (
	"fmt"
	"math"
	"math/rand"

	xml "github.com/drakos74/go-ex-machina/xmachina/ml"
	"github.com/drakos74/go-ex-machina/xmachina/net"
	"github.com/drakos74/go-ex-machina/xmachina/net/ff"
	"github.com/drakos74/go-ex-machina/xmath"
)

const epsilon = 1e-12

// NetworkConfig describes a feed-forward classifier.
type NetworkConfig struct {
	Inputs       int     `json:"inputs"`
	Hidden       []int   `json:"hidden"`
	Classes      int     `json:"classes"`
	LearningRate float64 `json:"rate"`
	Activation   string  `json:"activation"`
	Seed         int64   `json:"seed"`
}

// Network is a dense classifier producing one logit per class.
type Network struct {
	cfg     NetworkConfig
	net     *ff.Network
	samples int
}

// rectifier is relu with a derivative that actually gates the gradient.
type rectifier struct{}

func (r rectifier) F(x float64) float64 {
	return math.Max(0, x)
}

func (r rectifier) D(y float64) float64 {
	if y > 0 {
		return 1
	}
	return 0
}

// identity leaves the output layer as raw logits.
type identity struct{}

func (i identity) F(x float64) float64 {
	return x
}

func (i identity) D(y float64) float64 {
	return 1
}

// Activation resolves an activation function by name.
func Activation(name string) (xml.Activation, error) {
	switch name {
	case "", "relu":
		return rectifier{}, nil
	case "tanh":
		return xml.TanH, nil
	case "sigmoid":
		return xml.Sigmoid, nil
	}
	return nil, fmt.Errorf("unknown activation '%s'", name)
}

// NewNetwork creates a new network from the given config.
func NewNetwork(cfg NetworkConfig) (*Network, error) {
	if cfg.Inputs <= 0 || cfg.Classes <= 1 {
		return nil, fmt.Errorf("inputs %d classes %d: %w", cfg.Inputs, cfg.Classes, ErrDimension)
	}
	activation, err := Activation(cfg.Activation)
	if err != nil {
		return nil, err
	}
	rate := xml.Rate(cfg.LearningRate)

	initW := xmath.Rand(-1, 1, math.Sqrt)
	initB := xmath.Rand(-1, 1, math.Sqrt)
	// the generators reseed from the clock, so seed after creating them
	rand.Seed(cfg.Seed)

	network := ff.New(cfg.Inputs, cfg.Classes)
	for _, h := range cfg.Hidden {
		network.Add(h, net.NewBuilder().
			WithModule(xml.Base().
				WithRate(rate).
				WithActivation(activation)).
			WithWeights(initW, initB).
			Factory(net.NewActivationCell))
	}
	network.Add(cfg.Classes, net.NewBuilder().
		WithModule(xml.Base().
			WithRate(rate).
			WithActivation(identity{})).
		WithWeights(initW, initB).
		Factory(net.NewActivationCell))

	return &Network{cfg: cfg, net: network}, nil
}

// Samples returns the number of samples the network has been trained on.
func (n *Network) Samples() int {
	return n.samples
}

// Params returns the number of trainable parameters.
func (n *Network) Params() int {
	params := 0
	p := n.cfg.Inputs
	for _, h := range append(append([]int{}, n.cfg.Hidden...), n.cfg.Classes) {
		params += p*h + h
		p = h
	}
	return params
}

func (n *Network) input(x []float64) (xmath.Vector, error) {
	if len(x) != n.cfg.Inputs {
		return nil, fmt.Errorf("input of size %d instead of %d: %w", len(x), n.cfg.Inputs, ErrDimension)
	}
	return xmath.Vec(len(x)).With(x...), nil
}

// Logits returns the raw scores of the output layer.
func (n *Network) Logits(x []float64) ([]float64, error) {
	in, err := n.input(x)
	if err != nil {
		return nil, err
	}
	return n.net.Predict(in), nil
}

// Probabilities returns the softmax of the logits.
func (n *Network) Probabilities(x []float64) ([]float64, error) {
	logits, err := n.Logits(x)
	if err != nil {
		return nil, err
	}
	return xml.SoftMax{}.F(logits), nil
}

// Predict returns the most probable class.
func (n *Network) Predict(x []float64) (int, error) {
	logits, err := n.Logits(x)
	if err != nil {
		return 0, err
	}
	return ArgMax(logits), nil
}

// TrainSample runs one gradient step on a single sample.
// It returns the cross-entropy loss and the class predicted before the update.
func (n *Network) TrainSample(x []float64, label int) (float64, int, error) {
	if label < 0 || label >= n.cfg.Classes {
		return 0, 0, fmt.Errorf("label %d out of %d classes: %w", label, n.cfg.Classes, ErrDimension)
	}
	in, err := n.input(x)
	if err != nil {
		return 0, 0, err
	}
	logits := n.net.Predict(in)
	probs := xml.SoftMax{}.F(logits)
	// the network back-propagates expected - output,
	// so shifting the logits by (onehot - softmax) yields the cross-entropy gradient.
	target := xmath.Vec(n.cfg.Classes)
	for i := range target {
		y := 0.0
		if i == label {
			y = 1
		}
		target[i] = logits[i] + y - probs[i]
	}
	n.net.Train(in, target)
	n.samples++
	return Loss(probs, label), ArgMax(logits), nil
}

// Loss is the cross-entropy of the probabilities against the true label.
func Loss(probs []float64, label int) float64 {
	return -math.Log(math.Max(probs[label], epsilon))
}
