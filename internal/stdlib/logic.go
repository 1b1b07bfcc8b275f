package stdlib

// logicSource implements small boolean-connective macros reused across
// problems, in the same spirit as the card.* cardinality macros.
const logicSource = `
predicate implies_all(a: Bool, c: Comp(Bool)) = a => all(c);
predicate xor(a: Bool, b: Bool) = (a or b) and not (a and b);
`

func init() { register("logic", logicSource) }
