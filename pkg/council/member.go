package council

import (
	"fmt"
	"strings"

	"everlight-os/pkg/llm"
	"everlight-os/pkg/llm/factory"
)

// Member is one seat on the council: a named model behind a Provider.
type Member struct {
	Name     string
	Family   string
	Model    string
	Provider llm.Provider
}

// ParseMemberSpec builds the council roster from a comma-separated list
// of "name|family|model|baseURL" entries. Roster order is spec order
// and fixes the result ordering of every invocation.
func ParseMemberSpec(spec, apiKey string) ([]Member, error) {
	var members []Member
	for _, entry := range strings.Split(spec, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		fields := strings.Split(entry, "|")
		if len(fields) != 4 {
			return nil, fmt.Errorf("council member %q: want name|family|model|baseURL", entry)
		}
		name := strings.TrimSpace(fields[0])
		family := strings.TrimSpace(fields[1])
		model := strings.TrimSpace(fields[2])
		baseURL := strings.TrimSpace(fields[3])
		if name == "" || family == "" || model == "" {
			return nil, fmt.Errorf("council member %q: name, family and model are required", entry)
		}

		provider, err := factory.NewProvider(family, model, baseURL, apiKey)
		if err != nil {
			return nil, fmt.Errorf("council member %q: %w", name, err)
		}
		members = append(members, Member{
			Name:     name,
			Family:   family,
			Model:    model,
			Provider: provider,
		})
	}
	if len(members) == 0 {
		return nil, fmt.Errorf("council member spec %q yields no members", spec)
	}
	return members, nil
}
