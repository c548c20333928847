package hydrator

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/99minutos/identity-core/internal/core/query"
)

var errBroken = errors.New("connection refused")

type record map[string]any

func (r record) clone() record {
	out := make(record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// fakeExecutor is an in-memory stand-in for the relational store. It answers
// by query name and can be told to fail or to come back empty.
type fakeExecutor struct {
	mu sync.Mutex

	users       map[int64]record
	roles       map[int64]record
	permissions map[int64]record
	userRoles   map[int64][]int64
	rolePerms   map[int64][]int64

	empty        bool
	failOn       map[string]error
	failPermsFor map[int64]error
	uniqueOn     string
	delay        time.Duration

	inFlight    atomic.Int32
	maxInFlight atomic.Int32
	calls       atomic.Int32
}

func newFakeExecutor() *fakeExecutor {
	return &fakeExecutor{
		users:        make(map[int64]record),
		roles:        make(map[int64]record),
		permissions:  make(map[int64]record),
		userRoles:    make(map[int64][]int64),
		rolePerms:    make(map[int64][]int64),
		failOn:       make(map[string]error),
		failPermsFor: make(map[int64]error),
	}
}

var fixtureTime = time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC)

func (f *fakeExecutor) addUser(id int64, username, email string, version int64) {
	f.users[id] = record{
		"id": id, "uuid": uuid.NewSHA1(uuid.NameSpaceOID, []byte(username)).String(),
		"username": username, "email": email, "password_hash": "hash",
		"first_name": "First", "last_name": nil,
		"enabled": true, "account_non_expired": true, "account_non_locked": true, "credentials_non_expired": true,
		"created_at": fixtureTime.Add(time.Duration(id) * time.Minute), "updated_at": fixtureTime,
		"created_by": "system", "updated_by": "system", "last_login_at": nil, "version": version,
	}
}

func (f *fakeExecutor) addRole(id int64, name string, active bool, permIDs ...int64) {
	f.roles[id] = record{
		"id": id, "name": name, "description": name + " role", "active": active,
		"created_at": fixtureTime, "updated_at": fixtureTime,
	}
	f.rolePerms[id] = permIDs
}

func (f *fakeExecutor) addPermission(id int64, resource, action string) {
	f.permissions[id] = record{
		"id": id, "name": resource + "_" + action, "description": nil,
		"resource": resource, "action": action, "created_at": fixtureTime,
	}
}

func (f *fakeExecutor) grant(userID int64, roleIDs ...int64) {
	f.userRoles[userID] = append(f.userRoles[userID], roleIDs...)
}

func (f *fakeExecutor) enter(ctx context.Context, q query.Query) error {
	f.calls.Add(1)
	if err := ctx.Err(); err != nil {
		return err
	}
	if err, ok := f.failOn[q.Name]; ok {
		return err
	}
	return nil
}

func (f *fakeExecutor) QueryOne(ctx context.Context, q query.Query) (query.Row, bool, error) {
	if err := f.enter(ctx, q); err != nil {
		return query.Row{}, false, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.empty {
		return query.Row{}, false, nil
	}

	var rec record
	switch q.Name {
	case "user.find_by_id", "user.current_version":
		rec = f.users[q.Args[0].(int64)]
		if rec != nil && q.Name == "user.current_version" {
			rec = record{"version": rec["version"]}
		}
	case "user.find_by_username", "user.find_by_uuid":
		col := "username"
		if q.Name == "user.find_by_uuid" {
			col = "uuid"
		}
		for _, u := range f.sortedUsers() {
			if u[col] == q.Args[0] {
				rec = u
				break
			}
		}
	case "user.find_by_username_or_email":
		for _, u := range f.sortedUsers() {
			if u["username"] == q.Args[0] || u["email"] == q.Args[1] {
				rec = u
				break
			}
		}
	case "user.count":
		rec = record{"total": int64(len(f.users))}
	case "user.count_active_roles":
		var n int64
		for _, rid := range f.userRoles[q.Args[0].(int64)] {
			if r := f.roles[rid]; r != nil && r["active"] == true {
				n++
			}
		}
		rec = record{"total": n}
	case "user.has_permission":
		var n int64
		for _, rid := range f.userRoles[q.Args[0].(int64)] {
			if r := f.roles[rid]; r == nil || r["active"] != true {
				continue
			}
			for _, pid := range f.rolePerms[rid] {
				p := f.permissions[pid]
				if p["resource"] == q.Args[1] && p["action"] == q.Args[2] {
					n++
				}
			}
		}
		rec = record{"total": n}
	case "user.create":
		if f.uniqueOn != "" {
			return query.Row{}, false, &query.Error{Op: q.Name, Kind: query.KindUniqueViolation, Constraint: f.uniqueOn, Err: errors.New("duplicate key")}
		}
		id := int64(len(f.users) + 1)
		rec = record{"id": id, "last_login_at": nil}
		for i, col := range []string{
			"uuid", "username", "email", "password_hash", "first_name", "last_name",
			"enabled", "account_non_expired", "account_non_locked", "credentials_non_expired",
			"created_at", "updated_at", "created_by", "updated_by", "version",
		} {
			rec[col] = q.Args[i]
		}
		f.users[id] = rec
	case "user.update", "user.replace_roles":
		n := len(q.Args)
		id, expected := q.Args[n-2].(int64), q.Args[n-1].(int64)
		u := f.users[id]
		if u == nil || u["version"] != expected {
			return query.Row{}, false, nil
		}
		u["version"] = expected + 1
		if q.Name == "user.update" {
			u["email"], u["first_name"], u["last_name"] = q.Args[0], q.Args[1], q.Args[2]
			u["enabled"] = q.Args[3]
		}
		rec = u
	case "user.update_last_login":
		u := f.users[q.Args[1].(int64)]
		if u == nil {
			return query.Row{}, false, nil
		}
		u["last_login_at"] = q.Args[0]
		rec = u
	case "role.find_by_id":
		rec = f.roles[q.Args[0].(int64)]
	case "role.find_by_name":
		for _, r := range f.roles {
			if r["name"] == q.Args[0] {
				rec = r
			}
		}
	case "role.create":
		if f.uniqueOn != "" {
			return query.Row{}, false, &query.Error{Op: q.Name, Kind: query.KindUniqueViolation, Constraint: f.uniqueOn, Err: errors.New("duplicate key")}
		}
		id := int64(len(f.roles) + 1)
		rec = record{"id": id, "name": q.Args[0], "description": q.Args[1], "active": q.Args[2], "created_at": q.Args[3], "updated_at": q.Args[4]}
		f.roles[id] = rec
	default:
		return query.Row{}, false, errors.New("fake: unexpected QueryOne " + q.Name)
	}
	if rec == nil {
		return query.Row{}, false, nil
	}
	return query.FromMap(rec.clone()), true, nil
}

func (f *fakeExecutor) QueryMany(ctx context.Context, q query.Query) ([]query.Row, error) {
	if err := f.enter(ctx, q); err != nil {
		return nil, err
	}

	if q.Name == "role.find_active_by_user" && f.delay > 0 {
		cur := f.inFlight.Add(1)
		for {
			prev := f.maxInFlight.Load()
			if cur <= prev || f.maxInFlight.CompareAndSwap(prev, cur) {
				break
			}
		}
		time.Sleep(f.delay)
		f.inFlight.Add(-1)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.empty {
		return []query.Row{}, nil
	}

	var recs []record
	switch q.Name {
	case "user.search":
		recs = f.sortedUsers()
	case "user.find_page":
		all := f.sortedUsers()
		sort.SliceStable(all, func(i, j int) bool {
			a, b := all[i]["created_at"].(time.Time), all[j]["created_at"].(time.Time)
			if !a.Equal(b) {
				return a.After(b)
			}
			return all[i]["id"].(int64) > all[j]["id"].(int64)
		})
		limit, offset := q.Args[0].(int), q.Args[1].(int)
		for i := offset; i < len(all) && i < offset+limit; i++ {
			recs = append(recs, all[i])
		}
	case "user.find_by_role_name":
		for _, u := range f.sortedUsers() {
			for _, rid := range f.userRoles[u["id"].(int64)] {
				if r := f.roles[rid]; r["name"] == q.Args[0] && r["active"] == true {
					recs = append(recs, u)
				}
			}
		}
	// Linked roles come back regardless of their flag so the hydrator's own
	// filtering is exercised.
	case "role.find_active_by_user":
		for _, rid := range f.userRoles[q.Args[0].(int64)] {
			if r := f.roles[rid]; r != nil {
				recs = append(recs, r)
			}
		}
		sort.Slice(recs, func(i, j int) bool { return recs[i]["name"].(string) < recs[j]["name"].(string) })
	case "role.find_all_active":
		for _, r := range f.sortedRoles() {
			if r["active"] == true {
				recs = append(recs, r)
			}
		}
	case "role.find_by_ids":
		want := make(map[int64]bool)
		for _, a := range q.Args {
			want[a.(int64)] = true
		}
		for _, r := range f.sortedRoles() {
			if want[r["id"].(int64)] {
				recs = append(recs, r)
			}
		}
	case "permission.find_by_role":
		rid := q.Args[0].(int64)
		if err := f.failPermsFor[rid]; err != nil {
			return nil, err
		}
		for _, pid := range f.rolePerms[rid] {
			recs = append(recs, f.permissions[pid])
		}
	default:
		return nil, errors.New("fake: unexpected QueryMany " + q.Name)
	}

	rows := make([]query.Row, 0, len(recs))
	for _, r := range recs {
		rows = append(rows, query.FromMap(r.clone()))
	}
	return rows, nil
}

func (f *fakeExecutor) Exec(ctx context.Context, q query.Query) (int64, error) {
	if err := f.enter(ctx, q); err != nil {
		return 0, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	switch q.Name {
	case "user.link_role":
		uid, rid := q.Args[0].(int64), q.Args[1].(int64)
		if f.roles[rid] == nil {
			return 0, &query.Error{Op: q.Name, Kind: query.KindForeignKey, Constraint: "user_roles_role_id_fkey", Err: errors.New("fk")}
		}
		f.userRoles[uid] = append(f.userRoles[uid], rid)
		return 1, nil
	case "user.unlink_roles":
		uid := q.Args[0].(int64)
		n := len(f.userRoles[uid])
		delete(f.userRoles, uid)
		return int64(n), nil
	case "role.link_permission":
		rid, pid := q.Args[0].(int64), q.Args[1].(int64)
		f.rolePerms[rid] = append(f.rolePerms[rid], pid)
		return 1, nil
	default:
		return 0, errors.New("fake: unexpected Exec " + q.Name)
	}
}

func (f *fakeExecutor) sortedUsers() []record {
	out := make([]record, 0, len(f.users))
	for _, u := range f.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i]["username"].(string), out[j]["username"].(string)
		if a != b {
			return a < b
		}
		return out[i]["id"].(int64) < out[j]["id"].(int64)
	})
	return out
}

func (f *fakeExecutor) sortedRoles() []record {
	out := make([]record, 0, len(f.roles))
	for _, r := range f.roles {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i]["id"].(int64) < out[j]["id"].(int64) })
	return out
}

// seeded returns a store with alice (ADMIN, EDITOR, inactive LEGACY) and bob (EDITOR).
func seeded() *fakeExecutor {
	f := newFakeExecutor()
	f.addPermission(1, "document", "read")
	f.addPermission(2, "document", "write")
	f.addPermission(3, "user", "manage")
	f.addPermission(4, "system", "shutdown")
	f.addRole(1, "ADMIN", true, 3, 1)
	f.addRole(2, "EDITOR", true, 1, 2)
	f.addRole(3, "LEGACY", false, 4)
	f.addUser(1, "alice", "alice@example.com", 1)
	f.addUser(2, "bob", "bob@example.com", 1)
	f.grant(1, 1, 2, 3)
	f.grant(2, 2)
	return f
}
