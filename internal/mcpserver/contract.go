package mcpserver

// ItemFormatContract describes the canonical Markdown item format that
// LLM consumers should follow when creating or importing items.
const ItemFormatContract = `# Dagaz Item Format Contract

Every item stored in dagaz is one Markdown file with YAML frontmatter.

## Structure

` + "```" + `markdown
---
id: "12"                            # ASSIGNED by the store: never invent one
title: Human-readable title         # REQUIRED: used in search and listings
description: One-line summary       # OPTIONAL: indexed for full-text search
priority: medium                    # low | medium | high (defaults to medium)
status: open                        # a registered workflow status name
start_date: 2026-03-01              # OPTIONAL: YYYY-MM-DD
end_date: 2026-03-05                # OPTIONAL: YYYY-MM-DD
start_time: "09:30"                 # OPTIONAL: HH:MM, 24-hour
tags:                               # OPTIONAL: YAML list; used for filtering
  - auth
  - backend
related:                            # OPTIONAL: references to other items
  - issues-4
  - docs-2
created_at: 2026-03-01T10:00:00Z
updated_at: 2026-03-01T10:00:00Z
---

Body text in standard Markdown.
` + "```" + `

## Rules

1. **YAML frontmatter is mandatory.** The ` + "`" + `---` + "`" + ` fences must be the first
   thing in the file (no leading blank lines).
2. **` + "`" + `title` + "`" + ` is required.** Types based on tasks or documents also require
   body content.
3. **Ids are allocated by the store.** Sequence types get increasing integers,
   session types get timestamp ids, daily types get the calendar date. When
   importing, any id in the frontmatter is ignored and a fresh one is assigned.
4. **Related references** use ` + "`" + `{type}-{id}` + "`" + ` form, e.g. ` + "`" + `issues-12` + "`" + `.
   The target does not have to exist yet.
5. **Tags** are plain lowercase names; duplicates are removed on write.
6. **Dates** are ` + "`" + `YYYY-MM-DD` + "`" + `; times are ` + "`" + `HH:MM` + "`" + ` 24-hour.
7. **Encoding** is UTF-8 with a trailing newline.

## Example

` + "```" + `markdown
---
id: "3"
title: Login fails with expired refresh token
description: Users are logged out instead of getting a new token
priority: high
status: in_progress
tags:
  - auth
related:
  - docs-1
created_at: 2026-03-01T10:00:00Z
updated_at: 2026-03-02T15:20:00Z
---

Steps to reproduce:

1. Sign in and wait for the refresh token to expire.
2. Trigger any API call.

Expected: a new token pair. Actual: a 401 and a forced logout.
` + "```" + `
`
