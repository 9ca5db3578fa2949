// Package mht2pdf converts archived web pages (MHT/MHTML) to PDF files
// carrying normalized bibliographic metadata, with a JSON sidecar per PDF.
//
// # Quick Start
//
// Create a converter, run jobs, and close when done:
//
//	conv := mht2pdf.NewConverter(
//	    mht2pdf.WithTimeout(2 * time.Minute),
//	    mht2pdf.WithSkipExisting(true),
//	)
//	defer conv.Close()
//
//	summary := conv.Run(ctx, []mht2pdf.Job{
//	    {Source: "saved/page.mht", Rel: "page.mht", OutputRoot: "saved/_pdf_archive"},
//	})
//	fmt.Printf("DONE ok=%d fail=%d\n", summary.Succeeded, summary.Failed)
//
// # Conversion Pipeline
//
// Each job runs these stages in order, one file at a time:
//
//  1. Envelope headers and the HTML payload are read from the archive
//  2. Candidate metadata is extracted from the HTML (JSON-LD, meta tags,
//     canonical link, readability, title)
//  3. Every field is resolved by its strategy chain: content, then
//     headers, then file fallbacks
//  4. The output path is planned from the title, shortened with a hash
//     suffix when it exceeds the ceiling
//  5. The archive is printed by headless Chrome (go-rod or chromedp)
//  6. The record is appended to the PDF as an Info dictionary and an XMP
//     packet, and written to a .metadata.json sidecar
//
// A failure in stages 5 or 6 marks that file failed; the run continues.
//
// # Output Roots
//
// Hold LockOutputRoot for the duration of a run so that two runs never
// write the same output root:
//
//	lock, err := mht2pdf.LockOutputRoot(root)
//	if err != nil {
//	    return err // wraps ErrConfig
//	}
//	defer lock.Unlock()
//
// # Error Handling
//
// Per-file errors are reported in ConversionRecord.Err and can be matched
// with errors.Is:
//
//	if errors.Is(rec.Err, mht2pdf.ErrRenderFailure) {
//	    // Chrome could not produce the PDF
//	}
//	if errors.Is(rec.Err, mht2pdf.ErrPathTooLong) {
//	    // the output root leaves no room for a file name
//	}
package mht2pdf
