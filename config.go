package tinyjs

import "fmt"

// Config is a flat map of typed engine settings, grounded on the
// teacher's own config.go (same SetBool/GetInt shape); extended here
// with the knobs the engine core needs (spec §9 "Design Notes", the
// Open Question on the fast-array threshold).
type Config map[string]*cfgVal

// NewConfig creates a configuration primed with the defaults the
// heap, parser, and built-ins expect.
func NewConfig() *Config {
	m := make(Config)
	m.SetInt("heap.size", 64*1024)
	m.SetBool("heap.wide_pointers", false)
	m.SetInt("gc.threshold", 32*1024)
	m.SetInt("literal.one_byte_limit", 255)
	m.SetInt("typedarray.compact_allocation_limit", 8192)
	m.SetBool("parser.strict_default", false)
	m.SetString("ecma.edition", "es2015")
	m.SetInt("log.level", 0)
	return &m
}

type cfgValType int

const (
	cfgValType_Undefined cfgValType = iota
	cfgValType_Bool
	cfgValType_Int
	cfgValType_String
)

func (vt cfgValType) String() string {
	return map[cfgValType]string{
		cfgValType_Undefined: "undefined",
		cfgValType_Bool:      "bool",
		cfgValType_Int:       "int",
		cfgValType_String:    "string",
	}[vt]
}

type cfgVal struct {
	typ      cfgValType
	asBool   bool
	asInt    int
	asString string
}

func (v *cfgVal) assignType(vt cfgValType) {
	if v.typ != vt && v.typ != cfgValType_Undefined {
		panic(fmt.Sprintf("tinyjs: can't assign `%s` to config value of type `%s`", vt, v.typ))
	}
	v.typ = vt
}

func (v *cfgVal) checkType(vt cfgValType) {
	if v.typ != vt {
		panic(fmt.Sprintf("tinyjs: can't retrieve `%s` from `%s` config value", vt, v.typ))
	}
}

func (c *Config) SetBool(path string, v bool) {
	(*c)[path] = &cfgVal{}
	(*c)[path].assignType(cfgValType_Bool)
	(*c)[path].asBool = v
}

func (c *Config) SetInt(path string, v int) {
	(*c)[path] = &cfgVal{}
	(*c)[path].assignType(cfgValType_Int)
	(*c)[path].asInt = v
}

func (c *Config) SetString(path string, v string) {
	(*c)[path] = &cfgVal{}
	(*c)[path].assignType(cfgValType_String)
	(*c)[path].asString = v
}

func (c *Config) GetBool(path string) bool {
	if val, ok := (*c)[path]; ok {
		val.checkType(cfgValType_Bool)
		return val.asBool
	}
	panic(fmt.Sprintf("tinyjs: bool setting `%s` does not exist", path))
}

func (c *Config) GetInt(path string) int {
	if val, ok := (*c)[path]; ok {
		val.checkType(cfgValType_Int)
		return val.asInt
	}
	panic(fmt.Sprintf("tinyjs: int setting `%s` does not exist", path))
}

func (c *Config) GetString(path string) string {
	if val, ok := (*c)[path]; ok {
		val.checkType(cfgValType_String)
		return val.asString
	}
	panic(fmt.Sprintf("tinyjs: string setting `%s` does not exist", path))
}
