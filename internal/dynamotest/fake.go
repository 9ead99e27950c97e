// Package dynamotest provides an in-memory DynamoDB used by unit tests. It
// understands the condition and update expressions the stores in this module
// emit: AND-joined comparisons, attribute_exists/attribute_not_exists, SET with
// + and - arithmetic and if_not_exists, and REMOVE. Transactions are applied
// under a single lock, so conditional writes behave atomically under
// concurrent callers.
package dynamotest

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
	"github.com/shopspring/decimal"
)

type keySchema struct {
	pk string
	sk string
}

type table struct {
	schema  keySchema
	indexes map[string]keySchema
	items   map[string]map[string]types.AttributeValue
	order   []string
}

// Fake is an in-memory implementation of the DynamoDB operations used by the
// stores.
type Fake struct {
	mu     sync.Mutex
	tables map[string]*table

	// TransactHook, when set, runs before a transaction is evaluated. A
	// non-nil error is returned to the caller and nothing is written.
	TransactHook func(in *dyn.TransactWriteItemsInput) error

	TransactCalls int
}

// New returns an empty Fake.
func New() *Fake {
	return &Fake{tables: map[string]*table{}}
}

// CreateTable registers a table with a partition key and optional sort key.
func (f *Fake) CreateTable(name, pk, sk string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tables[name] = &table{
		schema:  keySchema{pk: pk, sk: sk},
		indexes: map[string]keySchema{},
		items:   map[string]map[string]types.AttributeValue{},
	}
}

// CreateIndex registers a secondary index usable by Query.
func (f *Fake) CreateIndex(tableName, index, pk, sk string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if t, ok := f.tables[tableName]; ok {
		t.indexes[index] = keySchema{pk: pk, sk: sk}
	}
}

// Item returns a copy of the stored item with the given key, or nil.
func (f *Fake) Item(tableName string, key map[string]types.AttributeValue) map[string]types.AttributeValue {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tables[tableName]
	if !ok {
		return nil
	}
	k, err := t.key(key)
	if err != nil {
		return nil
	}
	return copyItem(t.items[k])
}

// Count returns the number of items stored in a table.
func (f *Fake) Count(tableName string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	if t, ok := f.tables[tableName]; ok {
		return len(t.items)
	}
	return 0
}

func (f *Fake) table(name *string) (*table, error) {
	n := sdkaws.ToString(name)
	t, ok := f.tables[n]
	if !ok {
		return nil, &types.ResourceNotFoundException{Message: sdkaws.String("table not found: " + n)}
	}
	return t, nil
}

func (t *table) key(item map[string]types.AttributeValue) (string, error) {
	pk, ok := scalar(item[t.schema.pk])
	if !ok {
		return "", validationError("missing partition key " + t.schema.pk)
	}
	if t.schema.sk == "" {
		return pk, nil
	}
	sk, ok := scalar(item[t.schema.sk])
	if !ok {
		return "", validationError("missing sort key " + t.schema.sk)
	}
	return pk + "\x00" + sk, nil
}

func (t *table) put(k string, item map[string]types.AttributeValue) {
	if _, exists := t.items[k]; !exists {
		t.order = append(t.order, k)
	}
	t.items[k] = item
}

func (t *table) delete(k string) {
	if _, exists := t.items[k]; !exists {
		return
	}
	delete(t.items, k)
	for i, o := range t.order {
		if o == k {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
}

// GetItem implements aws.DynamoDBAPI.
func (f *Fake) GetItem(ctx context.Context, in *dyn.GetItemInput, optFns ...func(*dyn.Options)) (*dyn.GetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, err := f.table(in.TableName)
	if err != nil {
		return nil, err
	}
	k, err := t.key(in.Key)
	if err != nil {
		return nil, err
	}
	item, ok := t.items[k]
	if !ok {
		return &dyn.GetItemOutput{}, nil
	}
	return &dyn.GetItemOutput{Item: copyItem(item)}, nil
}

// PutItem implements aws.DynamoDBAPI.
func (f *Fake) PutItem(ctx context.Context, in *dyn.PutItemInput, optFns ...func(*dyn.Options)) (*dyn.PutItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, err := f.table(in.TableName)
	if err != nil {
		return nil, err
	}
	k, err := t.key(in.Item)
	if err != nil {
		return nil, err
	}
	current := t.items[k]
	ok, err := evalCondition(sdkaws.ToString(in.ConditionExpression), current, in.ExpressionAttributeNames, in.ExpressionAttributeValues)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, conditionalFailure(current, in.ReturnValuesOnConditionCheckFailure)
	}
	t.put(k, copyItem(in.Item))
	return &dyn.PutItemOutput{}, nil
}

// UpdateItem implements aws.DynamoDBAPI.
func (f *Fake) UpdateItem(ctx context.Context, in *dyn.UpdateItemInput, optFns ...func(*dyn.Options)) (*dyn.UpdateItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, err := f.table(in.TableName)
	if err != nil {
		return nil, err
	}
	k, err := t.key(in.Key)
	if err != nil {
		return nil, err
	}
	current := t.items[k]
	ok, err := evalCondition(sdkaws.ToString(in.ConditionExpression), current, in.ExpressionAttributeNames, in.ExpressionAttributeValues)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, conditionalFailure(current, in.ReturnValuesOnConditionCheckFailure)
	}
	updated, err := applyUpdate(current, in.Key, sdkaws.ToString(in.UpdateExpression), in.ExpressionAttributeNames, in.ExpressionAttributeValues)
	if err != nil {
		return nil, err
	}
	t.put(k, updated)
	out := &dyn.UpdateItemOutput{}
	if in.ReturnValues != types.ReturnValueNone && in.ReturnValues != "" {
		out.Attributes = copyItem(updated)
	}
	return out, nil
}

// DeleteItem implements aws.DynamoDBAPI.
func (f *Fake) DeleteItem(ctx context.Context, in *dyn.DeleteItemInput, optFns ...func(*dyn.Options)) (*dyn.DeleteItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, err := f.table(in.TableName)
	if err != nil {
		return nil, err
	}
	k, err := t.key(in.Key)
	if err != nil {
		return nil, err
	}
	current := t.items[k]
	ok, err := evalCondition(sdkaws.ToString(in.ConditionExpression), current, in.ExpressionAttributeNames, in.ExpressionAttributeValues)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, conditionalFailure(current, in.ReturnValuesOnConditionCheckFailure)
	}
	t.delete(k)
	return &dyn.DeleteItemOutput{}, nil
}

// Query implements aws.DynamoDBAPI for partition-key equality conditions.
func (f *Fake) Query(ctx context.Context, in *dyn.QueryInput, optFns ...func(*dyn.Options)) (*dyn.QueryOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, err := f.table(in.TableName)
	if err != nil {
		return nil, err
	}
	schema := t.schema
	if idx := sdkaws.ToString(in.IndexName); idx != "" {
		s, ok := t.indexes[idx]
		if !ok {
			return nil, validationError("unknown index " + idx)
		}
		schema = s
	}

	clause := strings.TrimSpace(sdkaws.ToString(in.KeyConditionExpression))
	fields := strings.Fields(clause)
	if len(fields) != 3 || fields[1] != "=" {
		return nil, validationError("unsupported key condition: " + clause)
	}
	attr := resolveName(fields[0], in.ExpressionAttributeNames)
	if attr != schema.pk {
		return nil, validationError("key condition must target partition key " + schema.pk)
	}
	want, ok := in.ExpressionAttributeValues[fields[2]]
	if !ok {
		return nil, validationError("missing value " + fields[2])
	}

	var matched []map[string]types.AttributeValue
	for _, k := range t.order {
		item := t.items[k]
		if equal(item[attr], want) {
			matched = append(matched, item)
		}
	}
	if schema.sk != "" {
		sort.SliceStable(matched, func(i, j int) bool {
			return compare(matched[i][schema.sk], matched[j][schema.sk]) < 0
		})
	}
	if in.ScanIndexForward != nil && !*in.ScanIndexForward {
		for i, j := 0, len(matched)-1; i < j; i, j = i+1, j-1 {
			matched[i], matched[j] = matched[j], matched[i]
		}
	}
	if in.Limit != nil && int(*in.Limit) < len(matched) {
		matched = matched[:*in.Limit]
	}
	out := &dyn.QueryOutput{Items: make([]map[string]types.AttributeValue, len(matched))}
	for i, item := range matched {
		out.Items[i] = copyItem(item)
	}
	out.Count = int32(len(out.Items))
	return out, nil
}

type pendingWrite struct {
	table   *table
	key     string
	item    map[string]types.AttributeValue
	deleted bool
	noop    bool
}

// TransactWriteItems implements aws.DynamoDBAPI. Either every item is applied
// or none is; condition failures are reported per item.
func (f *Fake) TransactWriteItems(ctx context.Context, in *dyn.TransactWriteItemsInput, optFns ...func(*dyn.Options)) (*dyn.TransactWriteItemsOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.TransactCalls++

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(in.TransactItems) == 0 || len(in.TransactItems) > 100 {
		return nil, validationError(fmt.Sprintf("transaction must contain 1..100 items, got %d", len(in.TransactItems)))
	}
	if f.TransactHook != nil {
		if err := f.TransactHook(in); err != nil {
			return nil, err
		}
	}

	reasons := make([]types.CancellationReason, len(in.TransactItems))
	writes := make([]pendingWrite, len(in.TransactItems))
	seen := map[string]bool{}
	failed := false

	for i, it := range in.TransactItems {
		var (
			tableName *string
			key       map[string]types.AttributeValue
			cond      string
			names     map[string]string
			values    map[string]types.AttributeValue
			retOld    types.ReturnValuesOnConditionCheckFailure
		)
		switch {
		case it.Put != nil:
			tableName, key, cond, names, values, retOld = it.Put.TableName, it.Put.Item, sdkaws.ToString(it.Put.ConditionExpression), it.Put.ExpressionAttributeNames, it.Put.ExpressionAttributeValues, it.Put.ReturnValuesOnConditionCheckFailure
		case it.Update != nil:
			tableName, key, cond, names, values, retOld = it.Update.TableName, it.Update.Key, sdkaws.ToString(it.Update.ConditionExpression), it.Update.ExpressionAttributeNames, it.Update.ExpressionAttributeValues, it.Update.ReturnValuesOnConditionCheckFailure
		case it.Delete != nil:
			tableName, key, cond, names, values, retOld = it.Delete.TableName, it.Delete.Key, sdkaws.ToString(it.Delete.ConditionExpression), it.Delete.ExpressionAttributeNames, it.Delete.ExpressionAttributeValues, it.Delete.ReturnValuesOnConditionCheckFailure
		case it.ConditionCheck != nil:
			tableName, key, cond, names, values, retOld = it.ConditionCheck.TableName, it.ConditionCheck.Key, sdkaws.ToString(it.ConditionCheck.ConditionExpression), it.ConditionCheck.ExpressionAttributeNames, it.ConditionCheck.ExpressionAttributeValues, it.ConditionCheck.ReturnValuesOnConditionCheckFailure
		default:
			return nil, validationError("empty transact item")
		}

		t, err := f.table(tableName)
		if err != nil {
			return nil, err
		}
		k, err := t.key(key)
		if err != nil {
			return nil, err
		}
		dupKey := sdkaws.ToString(tableName) + "\x01" + k
		if seen[dupKey] {
			return nil, validationError("transaction cannot include multiple operations on one item")
		}
		seen[dupKey] = true

		current := t.items[k]
		ok, err := evalCondition(cond, current, names, values)
		if err != nil {
			return nil, err
		}
		if !ok {
			failed = true
			reasons[i] = types.CancellationReason{
				Code:    sdkaws.String("ConditionalCheckFailed"),
				Message: sdkaws.String("The conditional request failed"),
			}
			if retOld == types.ReturnValuesOnConditionCheckFailureAllOld {
				reasons[i].Item = copyItem(current)
			}
			continue
		}
		reasons[i] = types.CancellationReason{Code: sdkaws.String("None")}

		w := pendingWrite{table: t, key: k}
		switch {
		case it.Put != nil:
			w.item = copyItem(it.Put.Item)
		case it.Update != nil:
			updated, err := applyUpdate(current, key, sdkaws.ToString(it.Update.UpdateExpression), names, values)
			if err != nil {
				return nil, err
			}
			w.item = updated
		case it.Delete != nil:
			w.deleted = true
		default:
			w.noop = true
		}
		writes[i] = w
	}

	if failed {
		return nil, &types.TransactionCanceledException{
			Message:             sdkaws.String("Transaction cancelled, please refer cancellation reasons for specific reasons"),
			CancellationReasons: reasons,
		}
	}

	for _, w := range writes {
		switch {
		case w.noop:
		case w.deleted:
			w.table.delete(w.key)
		default:
			w.table.put(w.key, w.item)
		}
	}
	return &dyn.TransactWriteItemsOutput{}, nil
}

func conditionalFailure(current map[string]types.AttributeValue, ret types.ReturnValuesOnConditionCheckFailure) error {
	e := &types.ConditionalCheckFailedException{Message: sdkaws.String("The conditional request failed")}
	if ret == types.ReturnValuesOnConditionCheckFailureAllOld {
		e.Item = copyItem(current)
	}
	return e
}

func validationError(msg string) error {
	return &smithy.GenericAPIError{Code: "ValidationException", Message: msg, Fault: smithy.FaultClient}
}

// ErrInjected is a convenience error for TransactHook based failure injection.
var ErrInjected = errors.New("dynamotest: injected failure")

func resolveName(token string, names map[string]string) string {
	if strings.HasPrefix(token, "#") {
		if n, ok := names[token]; ok {
			return n
		}
	}
	return token
}

func resolveOperand(token string, item map[string]types.AttributeValue, names map[string]string, values map[string]types.AttributeValue) (types.AttributeValue, bool, error) {
	token = strings.TrimSpace(token)
	switch {
	case strings.HasPrefix(token, ":"):
		v, ok := values[token]
		if !ok {
			return nil, false, validationError("missing expression value " + token)
		}
		return v, true, nil
	case strings.HasPrefix(token, "if_not_exists(") && strings.HasSuffix(token, ")"):
		args := splitTopLevel(token[len("if_not_exists("):len(token)-1], ',')
		if len(args) != 2 {
			return nil, false, validationError("bad if_not_exists: " + token)
		}
		if v, ok := item[resolveName(strings.TrimSpace(args[0]), names)]; ok {
			return v, true, nil
		}
		return resolveOperand(args[1], item, names, values)
	default:
		v, ok := item[resolveName(token, names)]
		return v, ok, nil
	}
}

// evalCondition supports a disjunction of AND groups without parentheses.
func evalCondition(expr string, item map[string]types.AttributeValue, names map[string]string, values map[string]types.AttributeValue) (bool, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return true, nil
	}
	for _, group := range strings.Split(expr, " OR ") {
		ok, err := evalAll(group, item, names, values)
		if err != nil || ok {
			return ok, err
		}
	}
	return false, nil
}

func evalAll(expr string, item map[string]types.AttributeValue, names map[string]string, values map[string]types.AttributeValue) (bool, error) {
	for _, clause := range strings.Split(expr, " AND ") {
		clause = strings.TrimSpace(clause)
		switch {
		case strings.HasPrefix(clause, "attribute_exists(") && strings.HasSuffix(clause, ")"):
			name := resolveName(clause[len("attribute_exists("):len(clause)-1], names)
			if _, ok := item[name]; !ok {
				return false, nil
			}
			continue
		case strings.HasPrefix(clause, "attribute_not_exists(") && strings.HasSuffix(clause, ")"):
			name := resolveName(clause[len("attribute_not_exists("):len(clause)-1], names)
			if _, ok := item[name]; ok {
				return false, nil
			}
			continue
		}

		fields := strings.Fields(clause)
		if len(fields) != 3 {
			return false, validationError("unsupported condition: " + clause)
		}
		left, lok, err := resolveOperand(fields[0], item, names, values)
		if err != nil {
			return false, err
		}
		right, rok, err := resolveOperand(fields[2], item, names, values)
		if err != nil {
			return false, err
		}
		if !lok || !rok {
			if fields[1] == "<>" {
				continue
			}
			return false, nil
		}
		var ok bool
		switch fields[1] {
		case "=":
			ok = equal(left, right)
		case "<>":
			ok = !equal(left, right)
		case ">=":
			ok = sameType(left, right) && compare(left, right) >= 0
		case "<=":
			ok = sameType(left, right) && compare(left, right) <= 0
		case ">":
			ok = sameType(left, right) && compare(left, right) > 0
		case "<":
			ok = sameType(left, right) && compare(left, right) < 0
		default:
			return false, validationError("unsupported operator " + fields[1])
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

func applyUpdate(current, key map[string]types.AttributeValue, expr string, names map[string]string, values map[string]types.AttributeValue) (map[string]types.AttributeValue, error) {
	out := copyItem(current)
	if out == nil {
		out = copyItem(key)
	}
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return out, nil
	}

	sections := map[string]string{}
	rest := expr
	for rest != "" {
		var keyword string
		for _, kw := range []string{"SET ", "REMOVE "} {
			if strings.HasPrefix(rest, kw) {
				keyword = strings.TrimSpace(kw)
				rest = rest[len(kw):]
				break
			}
		}
		if keyword == "" {
			return nil, validationError("unsupported update expression: " + expr)
		}
		next := len(rest)
		for _, kw := range []string{" SET ", " REMOVE "} {
			if i := strings.Index(rest, kw); i >= 0 && i < next {
				next = i
			}
		}
		sections[keyword] = strings.TrimSpace(rest[:next])
		rest = strings.TrimSpace(rest[next:])
	}

	if set, ok := sections["SET"]; ok {
		for _, assignment := range splitTopLevel(set, ',') {
			parts := strings.SplitN(assignment, "=", 2)
			if len(parts) != 2 {
				return nil, validationError("bad assignment: " + assignment)
			}
			target := resolveName(strings.TrimSpace(parts[0]), names)
			v, err := evalValue(strings.TrimSpace(parts[1]), current, names, values)
			if err != nil {
				return nil, err
			}
			out[target] = v
		}
	}
	if remove, ok := sections["REMOVE"]; ok {
		for _, name := range splitTopLevel(remove, ',') {
			delete(out, resolveName(strings.TrimSpace(name), names))
		}
	}
	return out, nil
}

func evalValue(expr string, item map[string]types.AttributeValue, names map[string]string, values map[string]types.AttributeValue) (types.AttributeValue, error) {
	if i, op := topLevelOperator(expr); i >= 0 {
		left, lok, err := resolveOperand(expr[:i], item, names, values)
		if err != nil {
			return nil, err
		}
		right, rok, err := resolveOperand(expr[i+3:], item, names, values)
		if err != nil {
			return nil, err
		}
		if !lok || !rok {
			return nil, validationError("arithmetic on missing attribute: " + expr)
		}
		l, lerr := number(left)
		r, rerr := number(right)
		if lerr != nil || rerr != nil {
			return nil, validationError("arithmetic on non-number: " + expr)
		}
		result := l.Add(r)
		if op == '-' {
			result = l.Sub(r)
		}
		return &types.AttributeValueMemberN{Value: result.String()}, nil
	}
	v, ok, err := resolveOperand(expr, item, names, values)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, validationError("missing operand: " + expr)
	}
	return copyAV(v), nil
}

func topLevelOperator(expr string) (int, byte) {
	depth := 0
	for i := 0; i+2 < len(expr); i++ {
		switch expr[i] {
		case '(':
			depth++
		case ')':
			depth--
		case ' ':
			if depth == 0 && (expr[i+1] == '+' || expr[i+1] == '-') && expr[i+2] == ' ' {
				return i, expr[i+1]
			}
		}
	}
	return -1, 0
}

func splitTopLevel(s string, sep byte) []string {
	var parts []string
	depth, start := 0, 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			depth--
		case sep:
			if depth == 0 {
				parts = append(parts, strings.TrimSpace(s[start:i]))
				start = i + 1
			}
		}
	}
	return append(parts, strings.TrimSpace(s[start:]))
}

func scalar(v types.AttributeValue) (string, bool) {
	switch t := v.(type) {
	case *types.AttributeValueMemberS:
		return t.Value, true
	case *types.AttributeValueMemberN:
		return t.Value, true
	}
	return "", false
}

func number(v types.AttributeValue) (decimal.Decimal, error) {
	n, ok := v.(*types.AttributeValueMemberN)
	if !ok {
		return decimal.Zero, errors.New("not a number")
	}
	return decimal.NewFromString(n.Value)
}

func sameType(a, b types.AttributeValue) bool {
	switch a.(type) {
	case *types.AttributeValueMemberN:
		_, ok := b.(*types.AttributeValueMemberN)
		return ok
	case *types.AttributeValueMemberS:
		_, ok := b.(*types.AttributeValueMemberS)
		return ok
	}
	return false
}

func compare(a, b types.AttributeValue) int {
	if an, err := number(a); err == nil {
		if bn, err := number(b); err == nil {
			return an.Cmp(bn)
		}
	}
	as, _ := scalar(a)
	bs, _ := scalar(b)
	return strings.Compare(as, bs)
}

func equal(a, b types.AttributeValue) bool {
	switch av := a.(type) {
	case *types.AttributeValueMemberS:
		bv, ok := b.(*types.AttributeValueMemberS)
		return ok && av.Value == bv.Value
	case *types.AttributeValueMemberN:
		if _, ok := b.(*types.AttributeValueMemberN); !ok {
			return false
		}
		return compare(a, b) == 0
	case *types.AttributeValueMemberBOOL:
		bv, ok := b.(*types.AttributeValueMemberBOOL)
		return ok && av.Value == bv.Value
	case *types.AttributeValueMemberNULL:
		_, ok := b.(*types.AttributeValueMemberNULL)
		return ok
	}
	return false
}

func copyItem(item map[string]types.AttributeValue) map[string]types.AttributeValue {
	if item == nil {
		return nil
	}
	out := make(map[string]types.AttributeValue, len(item))
	for k, v := range item {
		out[k] = copyAV(v)
	}
	return out
}

func copyAV(v types.AttributeValue) types.AttributeValue {
	switch t := v.(type) {
	case *types.AttributeValueMemberS:
		return &types.AttributeValueMemberS{Value: t.Value}
	case *types.AttributeValueMemberN:
		return &types.AttributeValueMemberN{Value: t.Value}
	case *types.AttributeValueMemberBOOL:
		return &types.AttributeValueMemberBOOL{Value: t.Value}
	case *types.AttributeValueMemberNULL:
		return &types.AttributeValueMemberNULL{Value: t.Value}
	case *types.AttributeValueMemberB:
		return &types.AttributeValueMemberB{Value: append([]byte(nil), t.Value...)}
	case *types.AttributeValueMemberSS:
		return &types.AttributeValueMemberSS{Value: append([]string(nil), t.Value...)}
	case *types.AttributeValueMemberNS:
		return &types.AttributeValueMemberNS{Value: append([]string(nil), t.Value...)}
	case *types.AttributeValueMemberL:
		l := make([]types.AttributeValue, len(t.Value))
		for i, e := range t.Value {
			l[i] = copyAV(e)
		}
		return &types.AttributeValueMemberL{Value: l}
	case *types.AttributeValueMemberM:
		return &types.AttributeValueMemberM{Value: copyItem(t.Value)}
	}
	return v
}
