package ring

// DispatchWordSize is the width, in bytes, of the dispatch pointer every
// frame starts with. Exported so collaborator packages (the dispatch
// table, the front-end entry encoder) can size frames without
// duplicating the constant.
const DispatchWordSize = wordSize
