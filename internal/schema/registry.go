package schema

import "fmt"

// SymbolID is the numeric identifier for a tradable instrument.
type SymbolID uint32

// PersonaID is the numeric identifier for a persona.
type PersonaID uint16

// Symbol describes a tradable instrument.
type Symbol struct {
	ID   SymbolID
	Name string
}

// PersonaEntry describes a registered persona and its base routing weight.
type PersonaEntry struct {
	ID         PersonaID
	Name       string
	BaseWeight Ratio
}

// Registry stores symbol and persona mappings in a compact form.
type Registry struct {
	symbols       []Symbol
	personas      []PersonaEntry
	symbolByName  map[string]SymbolID
	personaByName map[string]PersonaID
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		symbolByName:  make(map[string]SymbolID),
		personaByName: make(map[string]PersonaID),
	}
}

// AddSymbol registers a new symbol and returns its ID.
func (r *Registry) AddSymbol(name string) (SymbolID, error) {
	if name == "" {
		return 0, fmt.Errorf("symbol name is empty")
	}
	if id, ok := r.symbolByName[name]; ok {
		return id, fmt.Errorf("symbol already exists: %s", name)
	}
	id := SymbolID(len(r.symbols) + 1)
	r.symbols = append(r.symbols, Symbol{ID: id, Name: name})
	r.symbolByName[name] = id
	return id, nil
}

// AddPersona registers a new persona and returns its ID.
func (r *Registry) AddPersona(name string, baseWeight Ratio) (PersonaID, error) {
	if name == "" {
		return 0, fmt.Errorf("persona name is empty")
	}
	if baseWeight < 0 {
		return 0, fmt.Errorf("persona base weight must be >= 0: %s", name)
	}
	if id, ok := r.personaByName[name]; ok {
		return id, fmt.Errorf("persona already exists: %s", name)
	}
	if len(r.personas) >= MaxRouterLegs {
		return 0, fmt.Errorf("persona registry full: max %d", MaxRouterLegs)
	}
	id := PersonaID(len(r.personas) + 1)
	r.personas = append(r.personas, PersonaEntry{ID: id, Name: name, BaseWeight: baseWeight})
	r.personaByName[name] = id
	return id, nil
}

// Symbol returns the symbol by ID.
func (r *Registry) Symbol(id SymbolID) (Symbol, bool) {
	if id == 0 || int(id) > len(r.symbols) {
		return Symbol{}, false
	}
	return r.symbols[id-1], true
}

// SymbolCount returns the number of symbols in the registry.
func (r *Registry) SymbolCount() int {
	return len(r.symbols)
}

// SymbolAt returns the symbol by zero-based index.
func (r *Registry) SymbolAt(index int) (Symbol, bool) {
	if index < 0 || index >= len(r.symbols) {
		return Symbol{}, false
	}
	return r.symbols[index], true
}

// SymbolIDByName returns the symbol ID for a name.
func (r *Registry) SymbolIDByName(name string) (SymbolID, bool) {
	id, ok := r.symbolByName[name]
	return id, ok
}

// Persona returns the persona entry by ID.
func (r *Registry) Persona(id PersonaID) (PersonaEntry, bool) {
	if id == 0 || int(id) > len(r.personas) {
		return PersonaEntry{}, false
	}
	return r.personas[id-1], true
}

// PersonaCount returns the number of personas in the registry.
func (r *Registry) PersonaCount() int {
	return len(r.personas)
}

// PersonaAt returns the persona by zero-based index.
func (r *Registry) PersonaAt(index int) (PersonaEntry, bool) {
	if index < 0 || index >= len(r.personas) {
		return PersonaEntry{}, false
	}
	return r.personas[index], true
}

// PersonaIDByName returns the persona ID for a name.
func (r *Registry) PersonaIDByName(name string) (PersonaID, bool) {
	id, ok := r.personaByName[name]
	return id, ok
}
