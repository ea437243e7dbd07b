package codegen

// enterScope pushes a fresh lexical scope onto the current function
// (a let's body), and exitScope pops it once the let's body is done.
func (c *Compiler) enterScope() {
	fn := c.cur()
	fn.Scopes = append(fn.Scopes, map[string]*Symbol{})
}

func (c *Compiler) exitScope() {
	fn := c.cur()
	fn.Scopes = fn.Scopes[:len(fn.Scopes)-1]
}

func (c *Compiler) bindScope(name string, sym *Symbol) {
	fn := c.cur()
	fn.Scopes[len(fn.Scopes)-1][name] = sym
}

// newLabel allocates a not-yet-placed branch target.
func (c *Compiler) newLabel() *Label {
	return &Label{}
}

// emitLabel marks lbl as pointing at the next instruction to be
// emitted in the current function.
func (c *Compiler) emitLabel(lbl *Label) {
	lbl.Defined = true
	lbl.Offset = len(c.cur().Instructions)
}

// lookup resolves name against the current function's own scopes,
// then (via resolveFreeVar) against every enclosing function's scopes
// -- threading a shadow local through each intermediate function along
// the way -- and finally falls back to the global table, creating a
// new global slot on first reference (§4.5.2's "first reference to an
// undeclared name creates" rule).
func (c *Compiler) lookup(name string) *Symbol {
	if sym := c.resolveFreeVar(c.Current, name); sym != nil {
		return sym
	}
	return c.lookupOrCreateGlobal(name)
}

// resolveFreeVar returns funcIdx's own binding for name, creating (or
// reusing) a chain of shadow locals from the function that actually
// owns the binding down to funcIdx if the name is only bound in some
// enclosing function. Returns nil if name isn't bound in funcIdx or any
// of its enclosing functions (the caller then falls back to globals).
func (c *Compiler) resolveFreeVar(funcIdx FuncIndex, name string) *Symbol {
	if funcIdx == NoFunc {
		return nil
	}
	fn := c.Functions[funcIdx]
	if sym := fn.findInScopes(name); sym != nil {
		return sym
	}
	outer := c.resolveFreeVar(fn.Enclosing, name)
	if outer == nil {
		return nil
	}
	shadow := &Symbol{Name: name, Kind: SymLocal, ClosureSource: outer}
	shadow.Index = fn.allocateLocal()
	// Bound into the function's own base scope (Scopes[0]) so it stays
	// visible no matter which nested let the capturing reference sits
	// inside, and so a second reference anywhere in fn finds the same
	// shadow via findInScopes instead of capturing again.
	fn.Scopes[0][name] = shadow
	fn.FreeVars = append(fn.FreeVars, &FreeVar{Name: name, Local: shadow, ClosureSource: outer})
	return shadow
}

func (c *Compiler) lookupOrCreateGlobal(name string) *Symbol {
	if sym := c.Globals.Get(name); sym != nil {
		return sym
	}
	sym := &Symbol{Name: name, Kind: SymGlobal, Index: c.GlobalCount}
	c.GlobalCount++
	c.Globals.Set(sym)
	return sym
}
