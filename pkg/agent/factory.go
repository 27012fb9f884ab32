package agent

import (
	"fmt"
	"maps"

	"interviewer/pkg/interview"
)

// Constructor builds an agent of one type from the effective config.
type Constructor func(client Requester, cfg interview.AgentConfig) interview.Agent

// DefaultConfigs returns the per-type generation defaults.
func DefaultConfigs() map[interview.AgentType]interview.AgentConfig {
	return map[interview.AgentType]interview.AgentConfig{
		interview.AgentTechnical:  {Temperature: interview.Float64(0.7), MaxTokens: 2048},
		interview.AgentBehavioral: {Temperature: interview.Float64(0.8), MaxTokens: 1536},
		interview.AgentIndustry:   {Temperature: interview.Float64(0.6), MaxTokens: 1536},
	}
}

// DefaultConstructors maps every agent type to its constructor.
func DefaultConstructors() map[interview.AgentType]Constructor {
	questionAgent := func(agentType interview.AgentType) Constructor {
		return func(client Requester, cfg interview.AgentConfig) interview.Agent {
			return NewQuestionAgent(client, agentType, cfg)
		}
	}
	return map[interview.AgentType]Constructor{
		interview.AgentTechnical:  questionAgent(interview.AgentTechnical),
		interview.AgentBehavioral: questionAgent(interview.AgentBehavioral),
		interview.AgentIndustry:   questionAgent(interview.AgentIndustry),
	}
}

// FactoryOption configures a Factory.
type FactoryOption func(*Factory)

// WithConstructor replaces the constructor for one agent type.
func WithConstructor(agentType interview.AgentType, ctor Constructor) FactoryOption {
	return func(f *Factory) { f.constructors[agentType] = ctor }
}

// WithDefaultConfig replaces the default config for one agent type.
func WithDefaultConfig(agentType interview.AgentType, cfg interview.AgentConfig) FactoryOption {
	return func(f *Factory) { f.defaults[agentType] = cfg }
}

// Factory implements interview.AgentFactory over a shared foundry client.
type Factory struct {
	client       Requester
	defaults     map[interview.AgentType]interview.AgentConfig
	constructors map[interview.AgentType]Constructor
}

// NewFactory creates a factory whose agents share client.
func NewFactory(client Requester, opts ...FactoryOption) *Factory {
	f := &Factory{
		client:       client,
		defaults:     DefaultConfigs(),
		constructors: DefaultConstructors(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// CreateAgent implements interview.AgentFactory.
func (f *Factory) CreateAgent(agentType interview.AgentType, override *interview.AgentConfig) (interview.Agent, error) {
	ctor, ok := f.constructors[agentType]
	if !ok {
		return nil, fmt.Errorf("unknown agent type: %s", agentType)
	}
	return ctor(f.client, mergeConfig(f.defaults[agentType], override)), nil
}

// mergeConfig overlays the set fields of override onto base.
func mergeConfig(base interview.AgentConfig, override *interview.AgentConfig) interview.AgentConfig {
	out := base
	out.Parameters = maps.Clone(base.Parameters)
	if override == nil {
		return out
	}
	if override.Model != "" {
		out.Model = override.Model
	}
	if override.Temperature != nil {
		t := *override.Temperature
		out.Temperature = &t
	}
	if override.MaxTokens > 0 {
		out.MaxTokens = override.MaxTokens
	}
	if len(override.Parameters) > 0 {
		if out.Parameters == nil {
			out.Parameters = make(map[string]any, len(override.Parameters))
		}
		maps.Copy(out.Parameters, override.Parameters)
	}
	return out
}
