package mcpserver

// MemoFormatContract describes how documents must be written for the link
// and tag indexes to pick them up.
const MemoFormatContract = `# memolink Document Format

memolink indexes inline Markdown links and front-matter tags. Anything else
in a document is opaque to it.

## Front matter

` + "```" + `markdown
---
title: Weekly standup          # OPTIONAL – shown in tag query results
tags: [meeting-notes, alpha]   # OPTIONAL – list or a single string
---
` + "```" + `

- The ` + "`---`" + ` fence must be the first line of the file.
- ` + "`tags`" + ` may be a YAML list or a comma-separated string.
- Documents without tags do not appear in tag queries.

## Links

- Only inline links are indexed: ` + "`[text](target)`" + `.
- Relative targets resolve against the linking document: ` + "`[B](./b.md)`" + `, ` + "`[C](../c.md)`" + `.
- Root-anchored targets use the corpus scheme: ` + "`[B](memo://notes/b.md)`" + `.
- A ` + "`#fragment`" + ` is kept but ignored for resolution.
- Targets must carry a document extension (` + "`.md`" + ` by default).
- Web URLs and other schemes such as ` + "`mailto:`" + ` are never indexed.
- Links inside fenced code blocks are ignored.

## Renames

Use the ` + "`rename_memo`" + ` tool instead of moving files by hand. It rewrites
every link that pointed at the old path, keeps each link's style and
relabels link text that equalled the old file name.
`
