package dynamic

// removalBinding is the page binding WatchRemove reports removals through
const removalBinding = "__revscrapeRemoved"

const jsPageInfo = `() => ({title: document.title, url: location.href})`

const jsCount = `(sel) => document.querySelectorAll(sel).length`

const jsText = `(sel) => {
	const el = document.querySelector(sel);
	return el ? el.textContent.trim() : null;
}`

const jsAttr = `(sel, name) => {
	const el = document.querySelector(sel);
	if (!el) return {found: false, has: false, value: ""};
	return {found: true, has: el.hasAttribute(name), value: el.getAttribute(name) || ""};
}`

const jsOuterHTML = `(sel) => Array.from(document.querySelectorAll(sel), el => el.outerHTML)`

const jsControls = `(sel) => Array.from(document.querySelectorAll(sel), el => ({
	text: el.textContent.trim(),
	attrs: Object.fromEntries(Array.from(el.attributes, a => [a.name, a.value])),
	disabled: el.disabled === true,
}))`

const jsClick = `(sel, i) => {
	const el = document.querySelectorAll(sel)[i];
	if (!el) return false;
	el.click();
	return true;
}`

const jsTextChanged = `(sel, baseline) => {
	const el = document.querySelector(sel);
	return !!el && el.textContent.trim() !== baseline;
}`

const jsRemove = `(sel) => {
	const els = document.querySelectorAll(sel);
	els.forEach(el => el.remove());
	return els.length;
}`

const jsWatchRemove = `(sel, binding, id) => {
	const describe = el => el.tagName.toLowerCase() +
		(typeof el.className === "string" && el.className.trim() ? "." + el.className.trim().split(/\s+/).join(".") : "");
	const report = el => {
		if (typeof window[binding] === "function") window[binding](JSON.stringify({id, desc: describe(el)}));
	};
	const sweep = node => {
		if (node.nodeType !== Node.ELEMENT_NODE) return;
		if (node.matches(sel)) { report(node); node.remove(); return; }
		node.querySelectorAll(sel).forEach(el => { report(el); el.remove(); });
	};
	new MutationObserver(records => {
		for (const r of records) r.addedNodes.forEach(sweep);
	}).observe(document.documentElement, {childList: true, subtree: true});
	return true;
}`
