package model

import "fmt"

// AgentID identifies one of the virtual financial advisors.
type AgentID string

const (
	AgentSofia  AgentID = "sofia"
	AgentMarcus AgentID = "marcus"
	AgentLuna   AgentID = "luna"
)

// Agent holds the display metadata for an advisor persona.
type Agent struct {
	ID    AgentID
	Name  string
	Role  string
	Icon  string
	Color string
}

// Agents is the exhaustive metadata table keyed by AgentID.
var Agents = map[AgentID]Agent{
	AgentSofia: {
		ID:    AgentSofia,
		Name:  "Sofia",
		Role:  "Financial Literacy Coach",
		Icon:  "◆",
		Color: "#EC4899",
	},
	AgentMarcus: {
		ID:    AgentMarcus,
		Name:  "Marcus",
		Role:  "Investment Educator",
		Icon:  "▲",
		Color: "#6366F1",
	},
	AgentLuna: {
		ID:    AgentLuna,
		Name:  "Luna",
		Role:  "Behavioral Coach",
		Icon:  "♥",
		Color: "#10B981",
	},
}

// agentOrder is the fixed display order of the dashboard cards.
var agentOrder = []AgentID{AgentSofia, AgentMarcus, AgentLuna}

// AgentIDs returns every known agent in display order.
func AgentIDs() []AgentID {
	ids := make([]AgentID, len(agentOrder))
	copy(ids, agentOrder)
	return ids
}

// ParseAgentID converts a wire value into an AgentID, rejecting unknown keys.
func ParseAgentID(s string) (AgentID, error) {
	id := AgentID(s)
	if _, ok := Agents[id]; !ok {
		return "", fmt.Errorf("unknown agent %q", s)
	}
	return id, nil
}

// Valid reports whether the id is part of the closed agent set.
func (a AgentID) Valid() bool {
	_, ok := Agents[a]
	return ok
}

// Name returns the persona's display name, or the raw id for unknown agents.
func (a AgentID) Name() string {
	if agent, ok := Agents[a]; ok {
		return agent.Name
	}
	return string(a)
}
