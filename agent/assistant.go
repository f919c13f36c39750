package agent

import "github.com/samshapley/ancientgrok/config"

type Assistant struct {
	ID     string
	Config *config.AssistantConfig
}

func NewAssistant(id string, config *config.AssistantConfig) *Assistant {
	return &Assistant{
		ID:     id,
		Config: config,
	}
}
