package validator

import (
	"errors"
	"fmt"
	"reflect"
	"runtime"
	"sort"
	"strings"
	"time"

	"katydid-common-contract/pkg/validator/check"
	"katydid-common-contract/pkg/validator/core"
	"katydid-common-contract/pkg/validator/message"
	"katydid-common-contract/pkg/validator/registry"
)

// ErrMaxDepthExceeded 嵌套深度超过上限
var ErrMaxDepthExceeded = errors.New("max validation depth exceeded")

var timeType = reflect.TypeOf(time.Time{})

// ============================================================================
// 对象遍历
// ============================================================================

// validateRoot 校验调用的入口对象，容器按元素展开，违反直接返回（不包装为 valid）
func (st *state) validateRoot(value any) ([]*core.Violation, error) {
	rv, ok := core.Indirect(value)
	if !ok {
		return nil, nil
	}
	if core.IsContainer(rv) {
		if !st.enter(reflect.ValueOf(value)) {
			return nil, nil
		}
		return st.eachElement(rv, nil, func(elem any, at core.Context) ([]*core.Violation, error) {
			st.push(at)
			defer st.pop()
			return st.validateRoot(elem)
		})
	}
	return st.validateObject(value)
}

// validateObject 校验单个对象：字段 -> getter -> 对象级约束 -> SelfValidator
func (st *state) validateObject(obj any) ([]*core.Violation, error) {
	rv, ok := core.Indirect(obj)
	if !ok || !st.enter(reflect.ValueOf(obj)) {
		return nil, nil
	}

	st.depth++
	defer func() { st.depth-- }()
	if st.depth > st.v.maxDepth {
		return nil, core.NewValidationFailedError(st.current(), ErrMaxDepthExceeded)
	}

	info, err := st.v.types.Resolve(rv.Type())
	if err != nil {
		return nil, core.NewValidationFailedError(st.current(), err)
	}
	prevOwner := st.owner
	st.owner = info.Type
	defer func() { st.owner = prevOwner }()

	var out []*core.Violation
	collect := func(vs []*core.Violation, err error) error {
		out = append(out, vs...)
		return err
	}

	if rv.Kind() == reflect.Struct {
		for _, f := range info.Fields {
			checks := f.Checks
			if st.v.cascadeNested && cascadable(f.Type) && !hasValid(checks) {
				checks = append(append([]core.Check(nil), checks...), st.v.implicitValid)
			}
			if len(checks) == 0 {
				continue
			}
			fv, err := rv.FieldByIndexErr(f.Index)
			if err != nil {
				// 经过 nil 嵌入指针的字段不存在
				continue
			}
			at := &core.FieldContext{Type: info.Type, Field: f.Name}
			if err := collect(st.checkValue(obj, core.Interface(fv), at, checks)); err != nil {
				return out, err
			}
		}
	}

	for _, g := range info.Getters {
		at := &core.MethodReturnValueContext{Type: info.Type, Method: g.Name}
		value, ok, err := callGetter(obj, rv, g)
		if err != nil {
			return out, core.NewValidationFailedError(at, err)
		}
		if !ok {
			// 经过 nil 嵌入指针提升的 getter 不存在
			continue
		}
		if err := collect(st.checkValue(obj, value, at, g.Checks)); err != nil {
			return out, err
		}
	}

	if len(info.ObjectChecks) > 0 {
		at := &core.TypeContext{Type: info.Type}
		if err := collect(st.checkValue(obj, obj, at, info.ObjectChecks)); err != nil {
			return out, err
		}
	}

	if info.SelfValidator {
		out = append(out, st.validateSelf(obj, rv, info)...)
	}
	return out, nil
}

// validateSelf 执行 SelfValidator，报告的每个问题生成一条违反
func (st *state) validateSelf(obj any, rv reflect.Value, info *registry.TypeInfo) []*core.Violation {
	sv, ok := obj.(core.SelfValidator)
	if !ok {
		ptr := addressable(rv)
		if sv, ok = ptr.Interface().(core.SelfValidator); !ok {
			return nil
		}
	}

	var out []*core.Violation
	sv.ValidateSelf(st.ctx, func(field, checkName, msg string) {
		var at core.Context = &core.TypeContext{Type: info.Type}
		value := obj
		if field != "" {
			at = &core.FieldContext{Type: info.Type, Field: field}
			value = nil
			if f := info.Field(field); f != nil && rv.Kind() == reflect.Struct {
				if fv, err := rv.FieldByIndexErr(f.Index); err == nil {
					value = core.Interface(fv)
				}
			}
		}
		if checkName == "" {
			checkName = "self"
		}
		settings := core.NewSettings(checkName)
		if msg != "" {
			settings.Message = msg
		}
		out = append(out, st.newViolation(&settings, nil, obj, value, at))
	})
	return out
}

// cascade valid 级联：结构体完整校验，容器逐元素级联
func (st *state) cascade(value any, at core.Context) ([]*core.Violation, error) {
	rv, ok := core.Indirect(value)
	if !ok {
		return nil, nil
	}

	if core.IsContainer(rv) {
		if !st.enter(reflect.ValueOf(value)) {
			return nil, nil
		}
		st.depth++
		defer func() { st.depth-- }()
		if st.depth > st.v.maxDepth {
			return nil, core.NewValidationFailedError(at, ErrMaxDepthExceeded)
		}
		return st.eachElement(rv, at, st.cascade)
	}

	if rv.Kind() != reflect.Struct {
		// 只有带约束的命名类型需要校验
		t := rv.Type()
		if t.PkgPath() == "" {
			return nil, nil
		}
		info, err := st.v.types.Resolve(t)
		if err != nil {
			return nil, core.NewValidationFailedError(at, err)
		}
		if !info.HasConstraints() {
			return nil, nil
		}
	}

	st.push(at)
	defer st.pop()
	return st.validateObject(value)
}

// eachElement 遍历容器元素，map 按键的字符串形式排序以保证结果稳定
func (st *state) eachElement(rv reflect.Value, parent core.Context, fn func(elem any, at core.Context) ([]*core.Violation, error)) ([]*core.Violation, error) {
	var out []*core.Violation
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		for i := 0; i < rv.Len(); i++ {
			vs, err := fn(core.Interface(rv.Index(i)), &core.ContainerElementContext{Parent: parent, Index: i})
			out = append(out, vs...)
			if err != nil {
				return out, err
			}
		}
	case reflect.Map:
		for _, key := range sortedKeys(rv) {
			vs, err := fn(core.Interface(rv.MapIndex(key)), &core.MapValueContext{Parent: parent, Key: core.Interface(key)})
			out = append(out, vs...)
			if err != nil {
				return out, err
			}
		}
	}
	return out, nil
}

// ============================================================================
// 约束执行
// ============================================================================

// checkValue 对一个位置上的值执行一组校验
func (st *state) checkValue(obj, value any, at core.Context, checks []core.Check) ([]*core.Violation, error) {
	var out []*core.Violation
	for _, c := range checks {
		vs, err := st.apply(c, obj, value, at)
		out = append(out, vs...)
		if err != nil {
			return out, err
		}
	}
	return out, nil
}

// apply 处理 profile、When、Target 和容器作用目标，再执行校验
func (st *state) apply(c core.Check, obj, value any, at core.Context) ([]*core.Violation, error) {
	s := c.Config()
	if !st.v.profiles.active(s, st.requested) {
		return nil, nil
	}
	if s.When != nil && !s.When(obj, value) {
		return nil, nil
	}

	if s.Target != "" {
		target, targetAt, err := navigate(value, at, s.Target)
		if err != nil {
			return nil, core.NewValidationFailedError(at, err)
		}
		st.push(at)
		defer st.pop()
		value, at = target, targetAt
	}

	rv, ok := core.Indirect(value)
	if !ok || !core.IsContainer(rv) {
		return st.evaluate(c, obj, value, at)
	}

	var out []*core.Violation
	if s.AppliesTo.Has(core.TargetContainer) {
		vs, err := st.evaluate(c, obj, value, at)
		if out = append(out, vs...); err != nil {
			return out, err
		}
	}
	if s.AppliesTo.Has(core.TargetValues) {
		vs, err := st.eachElement(rv, at, func(elem any, elemAt core.Context) ([]*core.Violation, error) {
			return st.evaluate(c, obj, elem, elemAt)
		})
		if out = append(out, vs...); err != nil {
			return out, err
		}
	}
	if s.AppliesTo.Has(core.TargetKeys) && rv.Kind() == reflect.Map {
		for _, key := range sortedKeys(rv) {
			k := core.Interface(key)
			vs, err := st.evaluate(c, obj, k, &core.MapKeyContext{Parent: at, Key: k})
			if out = append(out, vs...); err != nil {
				return out, err
			}
		}
	}
	return out, nil
}

// evaluate 执行单个校验，结构性校验在此展开
func (st *state) evaluate(c core.Check, obj, value any, at core.Context) ([]*core.Violation, error) {
	switch c := c.(type) {
	case *check.AssertValid:
		causes, err := st.cascade(value, at)
		if err != nil || len(causes) == 0 {
			return nil, err
		}
		v := st.newViolation(c.Config(), c.MessageVariables(), obj, value, at)
		v.Causes = causes
		return []*core.Violation{v}, nil

	case *check.AssertConstraintSet:
		checks, ok := st.v.sets.Get(c.ID)
		if !ok {
			return nil, core.NewValidationFailedError(at, fmt.Errorf("constraint set %q not found", c.ID))
		}
		return st.expand("set:"+c.ID, at, func() ([]*core.Violation, error) {
			return st.checkValue(obj, value, at, checks)
		})

	case *check.AssertFieldConstraints:
		typ := c.Type
		if typ == nil {
			typ = st.owner
		}
		if typ == nil {
			return nil, core.NewValidationFailedError(at, fmt.Errorf("fieldof(%s): owner type unknown", c.Field))
		}
		info, err := st.v.types.Resolve(typ)
		if err != nil {
			return nil, core.NewValidationFailedError(at, err)
		}
		f := info.Field(c.Field)
		if f == nil {
			return nil, core.NewValidationFailedError(at, fmt.Errorf("fieldof: field %q not found in %s", c.Field, typ))
		}
		return st.expand("fieldof:"+typ.String()+"."+c.Field, at, func() ([]*core.Violation, error) {
			return st.checkValue(obj, value, at, f.Checks)
		})

	default:
		ok, err := c.IsSatisfied(st.ctx, obj, value, at)
		if err != nil {
			return nil, core.NewValidationFailedError(at, err)
		}
		if ok {
			return nil, nil
		}
		return []*core.Violation{st.newViolation(c.Config(), c.MessageVariables(), obj, value, at)}, nil
	}
}

// expand 展开引用型校验，同一引用在展开过程中再次出现视为配置错误
func (st *state) expand(key string, at core.Context, fn func() ([]*core.Violation, error)) ([]*core.Violation, error) {
	if _, active := st.active[key]; active {
		return nil, core.NewValidationFailedError(at, core.InvalidConfiguration(key, "recursive reference"))
	}
	st.active[key] = struct{}{}
	defer delete(st.active, key)
	return fn()
}

// newViolation 构建违反并渲染消息
func (st *state) newViolation(s *core.Settings, vars map[string]string, obj, value any, at core.Context) *core.Violation {
	all := make(map[string]string, len(vars)+2)
	for k, val := range vars {
		all[k] = val
	}
	all[message.VarContext] = at.String()
	all[message.VarInvalidValue] = formatValue(value)

	locale := message.LocaleFrom(st.ctx)
	if locale == "" {
		locale = st.v.locale
	}
	return &core.Violation{
		CheckName:        s.Name,
		Message:          st.v.resolver.Render(locale, s.Message, all),
		MessageTemplate:  s.Message,
		MessageVariables: all,
		ErrorCode:        s.ErrorCode,
		Severity:         s.Severity,
		Profiles:         s.EffectiveProfiles(),
		Context:          at,
		Path:             st.pathTo(at),
		InvalidValue:     value,
		ValidatedObject:  obj,
	}
}

// ============================================================================
// 辅助函数
// ============================================================================

// enter 标记指针、map 和 slice 为已访问，已访问过时返回 false
func (st *state) enter(rv reflect.Value) bool {
	var keys []visitKey
	for rv.IsValid() {
		switch rv.Kind() {
		case reflect.Interface:
			if rv.IsNil() {
				return true
			}
			rv = rv.Elem()
			continue
		case reflect.Pointer:
			if rv.IsNil() {
				return true
			}
			keys = append(keys, visitKey{typ: rv.Type(), ptr: rv.Pointer()})
			rv = rv.Elem()
			continue
		case reflect.Map:
			if !rv.IsNil() {
				keys = append(keys, visitKey{typ: rv.Type(), ptr: rv.Pointer()})
			}
		case reflect.Slice:
			if !rv.IsNil() {
				keys = append(keys, visitKey{typ: rv.Type(), ptr: rv.Pointer(), n: rv.Len()})
			}
		}
		break
	}
	for _, k := range keys {
		if _, seen := st.visited[k]; seen {
			return false
		}
	}
	for _, k := range keys {
		st.visited[k] = struct{}{}
	}
	return true
}

func (st *state) push(at core.Context) {
	st.path = append(st.path, at)
}

func (st *state) pop() {
	st.path[len(st.path)-1] = nil
	st.path = st.path[:len(st.path)-1]
}

func (st *state) current() core.Context {
	if len(st.path) == 0 {
		return nil
	}
	return st.path[len(st.path)-1]
}

func (st *state) pathTo(at core.Context) []core.Context {
	path := make([]core.Context, 0, len(st.path)+1)
	path = append(path, st.path...)
	if len(path) == 0 || path[len(path)-1] != at {
		path = append(path, at)
	}
	return path
}

// navigate 按点分隔路径读取子字段，路径中遇到 nil 时返回 nil
func navigate(value any, at core.Context, target string) (any, core.Context, error) {
	cur := value
	for _, seg := range strings.Split(target, ".") {
		if seg == "" {
			return nil, at, fmt.Errorf("invalid target path %q", target)
		}
		if core.IsNil(cur) {
			return nil, at, nil
		}
		next, err := check.FieldValue(cur, seg)
		if err != nil {
			return nil, at, err
		}
		at = &core.FieldContext{Type: reflect.TypeOf(cur), Field: seg}
		cur = next
	}
	return cur, at, nil
}

// callGetter 调用无参 getter，值接收者对象无法调用指针方法时复制为可寻址值
// 第二个返回值为 false 表示 getter 经由 nil 嵌入指针提升，无法调用
func callGetter(obj any, rv reflect.Value, g *registry.GetterInfo) (any, bool, error) {
	name := g.Name
	m := reflect.ValueOf(obj).MethodByName(name)
	if !m.IsValid() {
		m = addressable(rv).MethodByName(name)
	}
	if !m.IsValid() {
		return nil, false, fmt.Errorf("getter %s not found on %s", name, rv.Type())
	}
	if m.Type().NumIn() != 0 || m.Type().NumOut() != 1 {
		return nil, false, fmt.Errorf("%s.%s is not a getter", rv.Type(), name)
	}
	if nilOnPath(rv, g.Promoted) {
		return callPromoted(m)
	}
	return core.Interface(m.Call(nil)[0]), true, nil
}

// callPromoted 嵌入指针为 nil 时调用 getter
// 外层类型自己声明的同名方法正常返回，提升的方法解引用 nil 时视为不存在
func callPromoted(m reflect.Value) (value any, ok bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			if _, isRuntime := r.(runtime.Error); !isRuntime {
				panic(r)
			}
			value, ok, err = nil, false, nil
		}
	}()
	return core.Interface(m.Call(nil)[0]), true, nil
}

// nilOnPath 沿嵌入字段路径是否遇到 nil 指针
func nilOnPath(rv reflect.Value, path []int) bool {
	if len(path) == 0 || rv.Kind() != reflect.Struct {
		return false
	}
	cur := rv
	for _, i := range path {
		if cur.Kind() == reflect.Pointer {
			if cur.IsNil() {
				return true
			}
			cur = cur.Elem()
		}
		cur = cur.Field(i)
	}
	return cur.Kind() == reflect.Pointer && cur.IsNil()
}

// addressable 返回指向 rv 的指针，不可寻址时复制一份
func addressable(rv reflect.Value) reflect.Value {
	if rv.CanAddr() {
		return rv.Addr()
	}
	ptr := reflect.New(rv.Type())
	ptr.Elem().Set(rv)
	return ptr
}

func sortedKeys(rv reflect.Value) []reflect.Value {
	keys := rv.MapKeys()
	sort.Slice(keys, func(i, j int) bool {
		return fmt.Sprint(core.Interface(keys[i])) < fmt.Sprint(core.Interface(keys[j]))
	})
	return keys
}

// cascadable 结构体（time.Time 除外）或元素为结构体的容器
func cascadable(t reflect.Type) bool {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	switch t.Kind() {
	case reflect.Struct:
		return t != timeType
	case reflect.Slice, reflect.Array, reflect.Map:
		return cascadable(t.Elem())
	default:
		return false
	}
}

func hasValid(checks []core.Check) bool {
	for _, c := range checks {
		if _, ok := c.(*check.AssertValid); ok {
			return true
		}
	}
	return false
}

func formatValue(value any) string {
	if core.IsNil(value) {
		return "null"
	}
	if s, ok := core.ToString(value); ok {
		return s
	}
	return fmt.Sprintf("%v", value)
}
