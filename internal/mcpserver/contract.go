package mcpserver

// RuleFormatContract describes the rules file format that callers should
// follow when configuring stitch.
const RuleFormatContract = `# Stitch Rules File Contract

A rules file is YAML with a top-level ` + "`rules`" + ` list. Each rule guarantees
that a field is present exactly once after its anchor field in every record.

## Structure

` + "```" + `yaml
rules:
  - name: compact-array-encoding          # REQUIRED - unique identifier
    anchor: "executed_time: 0,"           # REQUIRED - literal text marking the insertion point
    field: "use_compact_array_encoding: false,"  # REQUIRED - literal text to insert after the anchor
    indent: "            "                # OPTIONAL - whitespace prefix; defaults to four spaces
` + "```" + `

## Rules

1. **Anchor and field are literal text**, not patterns. They match anywhere
   in a document, including comments and string literals.
2. **Field must include its trailing separator** (usually a comma) so the
   inserted line matches the surrounding record style.
3. **Field and anchor must not contain each other.** Such a rule can never
   reach a fixed point and is rejected at load time.
4. **Patching is idempotent.** Re-applying a rule to an already patched
   document changes nothing, and existing duplicate copies of the field
   are collapsed to one.
5. **Environment variables** in the file are expanded (` + "`${VAR}`" + ` syntax).
`
