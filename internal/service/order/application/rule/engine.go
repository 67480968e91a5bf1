package rule

import (
	"fmt"

	"github.com/google/cel-go/cel"

	"orderhub/internal/service/order/domain"
)

// Engine 在任何外部调用发生之前评估一组 CEL 接单规则。
// 规则来自配置，全部为真才接受请求；没有配置规则时放行一切。
// 典型规则如 "quantity <= 100" 或 "!(userId in [42, 99])"。
type Engine struct {
	rules []compiledRule
}

type compiledRule struct {
	expr    string
	program cel.Program
}

// NewEngine 编译全部规则表达式。表达式必须是布尔类型，编译失败立即报错，
// 避免把坏规则带到请求路径上。
func NewEngine(exprs []string) (*Engine, error) {
	env, err := cel.NewEnv(
		cel.Variable("userId", cel.IntType),
		cel.Variable("productId", cel.IntType),
		cel.Variable("quantity", cel.IntType),
	)
	if err != nil {
		return nil, fmt.Errorf("create cel environment: %w", err)
	}

	e := &Engine{}
	for _, expr := range exprs {
		ast, issues := env.Compile(expr)
		if issues != nil && issues.Err() != nil {
			return nil, fmt.Errorf("compile rule %q: %w", expr, issues.Err())
		}
		if ast.OutputType() != cel.BoolType {
			return nil, fmt.Errorf("rule %q must evaluate to bool, got %s", expr, ast.OutputType())
		}
		prg, err := env.Program(ast)
		if err != nil {
			return nil, fmt.Errorf("build program for rule %q: %w", expr, err)
		}
		e.rules = append(e.rules, compiledRule{expr: expr, program: prg})
	}
	return e, nil
}

// Check 逐条评估规则，第一条不满足的规则以 ValidationError 形式拒绝请求。
func (e *Engine) Check(userID, productID int64, quantity int) error {
	if e == nil || len(e.rules) == 0 {
		return nil
	}
	input := map[string]interface{}{
		"userId":    userID,
		"productId": productID,
		"quantity":  int64(quantity),
	}
	for _, r := range e.rules {
		out, _, err := r.program.Eval(input)
		if err != nil {
			return fmt.Errorf("evaluate rule %q: %w", r.expr, err)
		}
		ok, isBool := out.Value().(bool)
		if !isBool {
			return fmt.Errorf("rule %q returned non-bool value %v", r.expr, out.Value())
		}
		if !ok {
			return &domain.ValidationError{
				Field:  "order",
				Value:  fmt.Sprintf("userId=%d productId=%d quantity=%d", userID, productID, quantity),
				Reason: fmt.Sprintf("rejected by acceptance rule %q", r.expr),
			}
		}
	}
	return nil
}
