package mcpserver

// TemplateReference describes the attachment path templates so that LLM
// consumers can predict where files end up.
const TemplateReference = `# Attachment Template Reference

Attachments of a note are stored in a directory computed from a root and a
path template. File names of pasted and dropped images come from a name template.

## Root modes

| Mode           | Root directory                                              |
|----------------|-------------------------------------------------------------|
| ` + "`host_default`" + ` | the vault's own attachment folder setting (` + "`attachmentFolderPath`" + `) |
| ` + "`in_folder`" + `    | ` + "`root_path`" + `, relative to the vault root                          |
| ` + "`next_to_note`" + ` | ` + "`root_path`" + `, relative to the folder of the note                  |

A host setting of ` + "`./sub`" + ` is relative to the note's folder; ` + "`/`" + ` is the vault root.

## Variables

- ` + "`${notename}`" + `: the note's file name without extension.
- ` + "`${notepath}`" + `: the note's folder, relative to the vault root.
- ` + "`${date}`" + `: the capture time formatted with ` + "`date_format`" + `.
- ` + "`${date:FORMAT}`" + `: the capture time with an inline format.

Formats use moment.js tokens (` + "`YYYY MM DD HH mm ss SSS`" + ` and friends).
Text in square brackets is copied literally.

## Renames

When the path template contains ` + "`${notename}`" + ` or ` + "`${notepath}`" + `, renaming or
moving a note moves its attachment directory along. Only the differing part of
the old and new directory is moved, so a shared parent stays in place.
Call ` + "`rename_note`" + ` instead of moving files yourself so links are kept in sync.

## Example

With root ` + "`host_default`" + ` set to ` + "`/`" + `, path ` + "`${notepath}/${notename}`" + ` and name
` + "`IMG-${date}`" + `, an image pasted into ` + "`Docs/Design.md`" + ` is saved as
` + "`Docs/Design/IMG-20240305060708009.png`" + ` and referenced as ` + "`![[Docs/Design/IMG-20240305060708009.png]]`" + `.
`
