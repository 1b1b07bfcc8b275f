package stdlib

// cardSource implements cardinality macros over a Comp(Bool) comprehension
// argument, grounded on spec §8 seed test 6 (`exactly(2, Pick.has(i) for i
// in Items)`), which names this macro without defining it.
const cardSource = `
predicate exactly(k: Real, c: Comp(Bool)) = sum(c) = k;
predicate atmost(k: Real, c: Comp(Bool)) = sum(c) <= k;
predicate atleast(k: Real, c: Comp(Bool)) = sum(c) >= k;
predicate one_of(c: Comp(Bool)) = sum(c) = 1;
`

func init() { register("card", cardSource) }
