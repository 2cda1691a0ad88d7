package model

// PlanCache memoizes the JSON execution plan for a (query text, frozen
// index set) pair. Owned by the session, destroyed with it; not
// thread-safe, and per §5 need not be — the advisor issues requests
// serially within a session.
type PlanCache struct {
	m map[string][]byte
}

func NewPlanCache() *PlanCache {
	return &PlanCache{m: make(map[string][]byte)}
}

func PlanCacheKey(query string, indexes IndexSet) string {
	return query + "\x00" + indexes.Key()
}

func (c *PlanCache) Get(key string) ([]byte, bool) {
	v, ok := c.m[key]
	return v, ok
}

func (c *PlanCache) Put(key string, plan []byte) {
	c.m[key] = plan
}

func (c *PlanCache) Len() int { return len(c.m) }

// CostCache memoizes the weighted workload cost for a frozen index set.
// Invalidated only by starting a new session (i.e. never, within one).
type CostCache struct {
	m map[string]float64
}

func NewCostCache() *CostCache {
	return &CostCache{m: make(map[string]float64)}
}

func (c *CostCache) Get(indexes IndexSet) (float64, bool) {
	v, ok := c.m[indexes.Key()]
	return v, ok
}

func (c *CostCache) Put(indexes IndexSet, cost float64) {
	c.m[indexes.Key()] = cost
}

func (c *CostCache) Len() int { return len(c.m) }

// TableSizeCache memoizes base-relation byte sizes, looked up once per
// table per session (§7's conservative-default fallback policy lives in
// search.TableSizer, which populates this cache).
type TableSizeCache struct {
	m map[string]int64
}

func NewTableSizeCache() *TableSizeCache {
	return &TableSizeCache{m: make(map[string]int64)}
}

func (c *TableSizeCache) Get(table string) (int64, bool) {
	v, ok := c.m[table]
	return v, ok
}

func (c *TableSizeCache) Put(table string, bytes int64) {
	c.m[table] = bytes
}
