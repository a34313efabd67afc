/*
Package browser drives a headless Chromium through playwright for live
inspection sessions.

A Launcher owns the playwright driver and one browser process. Each Open
call creates an isolated browser context with one page, so cookies and
storage never leak between sessions.

The page exposes the adapters the domain packages consume:

  - Page.Document snapshots the rendered DOM into a dom.Document
  - Page.Layout implements inspector.Layout with getBoundingClientRect and
    getComputedStyle
  - Page.Store implements sitedata.Store over document.cookie and the Web
    Storage, IndexedDB and Cache Storage APIs
  - Page.Requests implements pentest.RequestLog from page request events
  - Page.Observer implements session.Observer with MutationObserver,
    IntersectionObserver and ResizeObserver

Elements are located in the page by the XPath of the snapshot node. A page
that changes its structure after the snapshot may resolve to a different
element or none; lookups that miss report zero geometry and no styles.
*/
package browser
