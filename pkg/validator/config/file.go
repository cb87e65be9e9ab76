package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"reflect"
	"strings"
	"sync"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"katydid-common-contract/pkg/logger"
	"katydid-common-contract/pkg/validator/check"
	"katydid-common-contract/pkg/validator/core"
)

// ============================================================================
// YAML 文档结构
// ============================================================================

// Document 约束配置文件
//
// 示例：
//
//	constraintSets:
//	  - id: username
//	    checks: ["notnull", "length(3, 20)"]
//	types:
//	  - type: model.User
//	    fields:
//	      - name: Name
//	        checks: ["set(username)"]
//	    getters:
//	      - name: FullName
//	        checks: ["notblank"]
//	    methods:
//	      - name: Rename
//	        parameters:
//	          - index: 0
//	            checks: ["set(username)"]
//	        returnValue:
//	          checks: ["notnull"]
type Document struct {
	ConstraintSets []ConstraintSetDoc `yaml:"constraintSets"`
	Types          []TypeDoc          `yaml:"types"`
}

type ConstraintSetDoc struct {
	ID        string   `yaml:"id"`
	Overwrite bool     `yaml:"overwrite"`
	Checks    []string `yaml:"checks"`
}

type TypeDoc struct {
	// Type 为 reflect.Type.String() 的结果，如 "model.User"
	Type            string           `yaml:"type"`
	Overwrite       bool             `yaml:"overwrite"`
	CheckInvariants *bool            `yaml:"checkInvariants"`
	Object          []string         `yaml:"object"`
	Fields          []MemberDoc      `yaml:"fields"`
	Getters         []MemberDoc      `yaml:"getters"`
	Methods         []MethodDoc      `yaml:"methods"`
	Constructors    []ConstructorDoc `yaml:"constructors"`
}

type MemberDoc struct {
	Name      string   `yaml:"name"`
	Overwrite *bool    `yaml:"overwrite"`
	Checks    []string `yaml:"checks"`
}

type ParameterDoc struct {
	Index     int      `yaml:"index"`
	Name      string   `yaml:"name"`
	Overwrite *bool    `yaml:"overwrite"`
	Checks    []string `yaml:"checks"`
}

type MethodDoc struct {
	Name        string         `yaml:"name"`
	Parameters  []ParameterDoc `yaml:"parameters"`
	ReturnValue *MemberDoc     `yaml:"returnValue"`
}

type ConstructorDoc struct {
	Name       string         `yaml:"name"`
	Parameters []ParameterDoc `yaml:"parameters"`
}

// ============================================================================
// FileConfigurer
// ============================================================================

// FileConfigurer 从 YAML 文档读取约束
// 文档在加载时即构建全部校验，配置错误在加载阶段暴露
// 线程安全：加载与查询可并发
type FileConfigurer struct {
	registry *check.Registry

	mu     sync.RWMutex
	types  map[string]*TypeConfig
	sets   []*ConstraintSetConfig
	loaded []string
}

// NewFileConfigurer 创建文件配置器，registry 为 nil 时使用默认注册表
func NewFileConfigurer(registry *check.Registry) *FileConfigurer {
	if registry == nil {
		registry = check.DefaultRegistry()
	}
	return &FileConfigurer{registry: registry, types: make(map[string]*TypeConfig)}
}

// LoadFile 加载配置文件
func (c *FileConfigurer) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return core.InvalidConfiguration(path, "read constraint file: %v", err)
	}
	return c.Load(data, path)
}

// Load 加载 YAML 内容，source 用于错误定位
// 同一内容中可以包含多个以 --- 分隔的文档
func (c *FileConfigurer) Load(data []byte, source string) error {
	docs, err := DecodeDocuments(bytes.NewReader(data))
	if err != nil {
		return core.InvalidConfiguration(source, "%v", err)
	}

	types := make(map[string]*TypeConfig)
	var sets []*ConstraintSetConfig
	for _, doc := range docs {
		s, err := c.buildSets(doc.ConstraintSets, source)
		if err != nil {
			return err
		}
		sets = append(sets, s...)
		for _, td := range doc.Types {
			tc, err := c.buildType(td, source)
			if err != nil {
				return err
			}
			types[td.Type] = Merge(types[td.Type], tc)
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for name, tc := range types {
		c.types[name] = Merge(c.types[name], tc)
	}
	c.sets = append(c.sets, sets...)
	c.loaded = append(c.loaded, source)

	logger.For("config").Debug("constraint file loaded",
		zap.String("source", source), zap.Int("types", len(types)), zap.Int("constraintSets", len(sets)))
	return nil
}

// Sources 返回已加载的来源
func (c *FileConfigurer) Sources() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]string(nil), c.loaded...)
}

// TypeNames 返回文件中声明的类型名
func (c *FileConfigurer) TypeNames() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.types))
	for name := range c.types {
		names = append(names, name)
	}
	return names
}

func (c *FileConfigurer) TypeConfig(t reflect.Type) (*TypeConfig, error) {
	c.mu.RLock()
	tc, ok := c.types[t.String()]
	c.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	// 返回副本，调用方的合并不影响已加载配置
	out := Merge(nil, tc)
	out.Type = t
	out.Overwrite = tc.Overwrite
	return out, nil
}

func (c *FileConfigurer) ConstraintSets() ([]*ConstraintSetConfig, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]*ConstraintSetConfig(nil), c.sets...), nil
}

// DecodeDocuments 严格解析（拒绝未知键）一个或多个 YAML 文档
func DecodeDocuments(r io.Reader) ([]*Document, error) {
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)

	var docs []*Document
	for {
		doc := &Document{}
		err := decoder.Decode(doc)
		if errors.Is(err, io.EOF) {
			return docs, nil
		}
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
}

func (c *FileConfigurer) buildChecks(source string, exprs []string) ([]core.Check, error) {
	var checks []core.Check
	for _, expr := range exprs {
		built, err := BuildChecks(c.registry, source, expr)
		if err != nil {
			return nil, err
		}
		checks = append(checks, built...)
	}
	return checks, nil
}

func (c *FileConfigurer) buildSets(docs []ConstraintSetDoc, source string) ([]*ConstraintSetConfig, error) {
	sets := make([]*ConstraintSetConfig, 0, len(docs))
	for _, sd := range docs {
		if strings.TrimSpace(sd.ID) == "" {
			return nil, core.InvalidConfiguration(source, "constraint set without id")
		}
		checks, err := c.buildChecks(fmt.Sprintf("%s: set %s", source, sd.ID), sd.Checks)
		if err != nil {
			return nil, err
		}
		sets = append(sets, &ConstraintSetConfig{ID: sd.ID, Overwrite: sd.Overwrite, Checks: checks})
	}
	return sets, nil
}

func (c *FileConfigurer) buildType(td TypeDoc, source string) (*TypeConfig, error) {
	if strings.TrimSpace(td.Type) == "" {
		return nil, core.InvalidConfiguration(source, "type entry without type name")
	}
	prefix := source + ": " + td.Type

	tc := &TypeConfig{Overwrite: td.Overwrite, CheckInvariants: td.CheckInvariants}
	var err error
	if tc.ObjectChecks, err = c.buildChecks(prefix, td.Object); err != nil {
		return nil, err
	}
	if tc.Fields, err = c.buildMembers(prefix, td.Fields); err != nil {
		return nil, err
	}
	if tc.Getters, err = c.buildMembers(prefix, td.Getters); err != nil {
		return nil, err
	}
	for _, md := range td.Methods {
		m := &MethodConfig{Name: md.Name}
		if m.Parameters, err = c.buildParameters(prefix+"."+md.Name, md.Parameters); err != nil {
			return nil, err
		}
		if md.ReturnValue != nil {
			rv, err := c.buildMembers(prefix+"."+md.Name, []MemberDoc{*md.ReturnValue})
			if err != nil {
				return nil, err
			}
			m.ReturnValue = rv[0]
		}
		tc.Methods = append(tc.Methods, m)
	}
	for _, cd := range td.Constructors {
		ctor := &ConstructorConfig{Name: cd.Name}
		if ctor.Parameters, err = c.buildParameters(prefix+"."+cd.Name, cd.Parameters); err != nil {
			return nil, err
		}
		tc.Constructors = append(tc.Constructors, ctor)
	}
	return tc, nil
}

func (c *FileConfigurer) buildMembers(prefix string, docs []MemberDoc) ([]*MemberConfig, error) {
	members := make([]*MemberConfig, 0, len(docs))
	for _, md := range docs {
		checks, err := c.buildChecks(prefix+"."+md.Name, md.Checks)
		if err != nil {
			return nil, err
		}
		members = append(members, &MemberConfig{Name: md.Name, Overwrite: md.Overwrite, Checks: checks})
	}
	return members, nil
}

func (c *FileConfigurer) buildParameters(prefix string, docs []ParameterDoc) ([]*ParameterConfig, error) {
	params := make([]*ParameterConfig, 0, len(docs))
	for _, pd := range docs {
		if pd.Index < 0 {
			return nil, core.InvalidConfiguration(prefix, "negative parameter index %d", pd.Index)
		}
		checks, err := c.buildChecks(fmt.Sprintf("%s() parameter %d", prefix, pd.Index), pd.Checks)
		if err != nil {
			return nil, err
		}
		params = append(params, &ParameterConfig{Index: pd.Index, Name: pd.Name, Overwrite: pd.Overwrite, Checks: checks})
	}
	return params, nil
}
