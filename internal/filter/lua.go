package filter

import (
	"strings"
	"sync"

	lua "github.com/yuin/gopher-lua"

	"github.com/wegman-software/osm2graph-go/internal/attr"
	"github.com/wegman-software/osm2graph-go/internal/highway"
	"github.com/wegman-software/osm2graph-go/internal/osmgraph"
)

// Script runs a Lua function accept_way(way) for every way. The way table
// has fields id and tags. A truthy return keeps the way.
//
// Helpers available to scripts:
//
//	trim(s), lower(s)
//	parse_speed(s)        -- kph or nil
//	highway_rank(s)       -- position in the class hierarchy or nil
type Script struct {
	mu     sync.Mutex
	L      *lua.LState
	accept lua.LValue
}

// LoadScript loads a filter script from a file
func LoadScript(path string) (*Script, error) {
	s := newScript()
	if err := s.L.DoFile(path); err != nil {
		s.Close()
		return nil, osmgraph.Wrap(osmgraph.KindConfiguration, err, "failed to load Lua file")
	}
	if err := s.bind(); err != nil {
		return nil, err
	}
	return s, nil
}

// LoadScriptString loads a filter script from source text
func LoadScriptString(code string) (*Script, error) {
	s := newScript()
	if err := s.L.DoString(code); err != nil {
		s.Close()
		return nil, osmgraph.Wrap(osmgraph.KindConfiguration, err, "failed to load Lua code")
	}
	if err := s.bind(); err != nil {
		return nil, err
	}
	return s, nil
}

func newScript() *Script {
	L := lua.NewState()
	L.SetGlobal("trim", L.NewFunction(luaTrim))
	L.SetGlobal("lower", L.NewFunction(luaLower))
	L.SetGlobal("parse_speed", L.NewFunction(luaParseSpeed))
	L.SetGlobal("highway_rank", L.NewFunction(luaHighwayRank))
	return &Script{L: L}
}

func (s *Script) bind() error {
	fn := s.L.GetGlobal("accept_way")
	if fn.Type() != lua.LTFunction {
		s.Close()
		return osmgraph.Errorf(osmgraph.KindConfiguration, "Lua filter must define accept_way(way)")
	}
	s.accept = fn
	return nil
}

// AcceptWay calls accept_way with the way's id and tags
func (s *Script) AcceptWay(id int64, tags map[string]string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	L := s.L
	way := L.NewTable()
	way.RawSetString("id", lua.LNumber(id))
	t := L.NewTable()
	for k, v := range tags {
		t.RawSetString(k, lua.LString(v))
	}
	way.RawSetString("tags", t)

	if err := L.CallByParam(lua.P{Fn: s.accept, NRet: 1, Protect: true}, way); err != nil {
		return false, osmgraph.Wrap(osmgraph.KindMalformedInput, err, "accept_way failed for way %d", id)
	}
	ret := L.Get(-1)
	L.Pop(1)
	return lua.LVAsBool(ret), nil
}

// Close releases the Lua state
func (s *Script) Close() error {
	if s.L != nil {
		s.L.Close()
		s.L = nil
	}
	return nil
}

func luaTrim(L *lua.LState) int {
	L.Push(lua.LString(strings.TrimSpace(L.CheckString(1))))
	return 1
}

func luaLower(L *lua.LState) int {
	L.Push(lua.LString(strings.ToLower(L.CheckString(1))))
	return 1
}

func luaParseSpeed(L *lua.LState) int {
	kph, ok, err := attr.ParseSpeed(L.CheckString(1), true)
	if err != nil || !ok {
		L.Push(lua.LNil)
		return 1
	}
	L.Push(lua.LNumber(kph))
	return 1
}

func luaHighwayRank(L *lua.LState) int {
	c, err := highway.Parse(L.CheckString(1))
	if err != nil {
		L.Push(lua.LNil)
		return 1
	}
	L.Push(lua.LNumber(c.Rank()))
	return 1
}
